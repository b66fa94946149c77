package companies

import "time"

// CompanyStatus is the lifecycle state of a single company analysis.
type CompanyStatus string

const (
	StatusPending   CompanyStatus = "pending"
	StatusAnalyzing CompanyStatus = "analyzing"
	StatusCompleted CompanyStatus = "completed"
	StatusError     CompanyStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s CompanyStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// BatchStatus is the derived state of a batch, never authoritative on its own.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
)

// UnknownBatchID groups companies that arrive without a batch id.
const UnknownBatchID = "unknown"

// Company is one analysis subject. Optional metadata is carried as pointers
// so an absent value is distinguishable from a real empty string.
type Company struct {
	ID                     string        `json:"id"`
	BatchID                string        `json:"batch_id"`
	Name                   string        `json:"name"`
	Domain                 string        `json:"domain"`
	Industry               *string       `json:"industry,omitempty"`
	FoundedYear            *int          `json:"founded_year,omitempty"`
	EmployeeCount          *string       `json:"employee_count,omitempty"`
	Location               *string       `json:"location,omitempty"`
	Description            *string       `json:"description,omitempty"`
	DigitalNativeScore     *float64      `json:"digital_native_score,omitempty"`
	IsDigitalNative        *bool         `json:"is_digital_native,omitempty"`
	DigitalNativeReasoning *string       `json:"digital_native_reasoning,omitempty"`
	IncidentIOFitScore     *float64      `json:"incident_io_fit_score,omitempty"`
	IncidentIOFitReasoning *string       `json:"incident_io_fit_reasoning,omitempty"`
	Status                 CompanyStatus `json:"status"`
	CreatedAt              time.Time     `json:"created_at"`
	AnalyzedAt             *time.Time    `json:"analyzed_at,omitempty"`
}

// Batch is a named collection of companies submitted together.
type Batch struct {
	BatchID        string
	Companies      []Company
	TotalCompanies int
	Status         BatchStatus
	Message        string
	UploadedAt     time.Time
}

// ProgressSnapshot is a point-in-time summary reported by the backend for one
// batch. The percentage is owned by the backend and consumed verbatim.
type ProgressSnapshot struct {
	BatchID            string  `json:"batch_id"`
	TotalCompanies     int     `json:"total_companies"`
	Completed          int     `json:"completed"`
	Failed             int     `json:"failed"`
	ProgressPercentage float64 `json:"progress_percentage"`
	Status             string  `json:"status"`
}

// TerminalSnapshot reports whether a snapshot status ends polling for its batch.
func TerminalSnapshot(status string) bool {
	return status == string(StatusCompleted) || status == string(StatusError)
}

// DeriveBatchStatus computes a batch's status from its member companies and
// the last merged snapshot, if any. This is the only place the rule lives.
func DeriveBatchStatus(members []Company, snapshot *ProgressSnapshot) BatchStatus {
	status := BatchCompleted
	for i := range members {
		if members[i].Status == StatusPending || members[i].Status == StatusAnalyzing {
			status = BatchProcessing
			break
		}
	}
	if snapshot != nil && !TerminalSnapshot(snapshot.Status) {
		status = BatchProcessing
	}
	return status
}
