package remote

// UploadError indicates a batch submission failed. No partial batch exists
// on the backend when it is returned.
type UploadError struct {
	Status  int
	Message string
	Err     error
}

func (e *UploadError) Error() string { return "upload batch: " + e.Message }
func (e *UploadError) Unwrap() error { return e.Err }

// ProgressError indicates a progress fetch failed for one batch. It never
// concerns more than that batch.
type ProgressError struct {
	BatchID string
	Status  int
	Message string
	Err     error
}

func (e *ProgressError) Error() string { return "fetch progress " + e.BatchID + ": " + e.Message }
func (e *ProgressError) Unwrap() error { return e.Err }

// ResultsError indicates a results or company-listing fetch failed.
type ResultsError struct {
	BatchID string // empty for the full company listing
	Status  int
	Message string
	Err     error
}

func (e *ResultsError) Error() string {
	if e.BatchID == "" {
		return "fetch companies: " + e.Message
	}
	return "fetch results " + e.BatchID + ": " + e.Message
}

func (e *ResultsError) Unwrap() error { return e.Err }

// ExportError indicates an export download failed.
type ExportError struct {
	BatchID string
	Status  int
	Message string
	Err     error
}

func (e *ExportError) Error() string { return "export batch " + e.BatchID + ": " + e.Message }
func (e *ExportError) Unwrap() error { return e.Err }

// DeleteError indicates a batch deletion failed on the backend. Local state
// must be left untouched when it is returned.
type DeleteError struct {
	BatchID string
	Status  int
	Message string
	Err     error
}

func (e *DeleteError) Error() string { return "delete batch " + e.BatchID + ": " + e.Message }
func (e *DeleteError) Unwrap() error { return e.Err }
