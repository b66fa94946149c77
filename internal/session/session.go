package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"analyzer-console/internal/companies"
	"analyzer-console/internal/remote"
	"analyzer-console/internal/shared/telemetry"
)

var ErrNotCSV = errors.New("selected file must be a .csv")

// Notification is a user-facing, dismissible message. All remote failures
// surface as notifications at this boundary; none crash the process.
type Notification struct {
	Level   string // "info" or "error"
	Message string
}

// RemoteAPI is the slice of the remote client the session needs.
type RemoteAPI interface {
	SubmitBatch(ctx context.Context, filename string, file io.Reader) (remote.UploadReceipt, error)
	FetchCompanies(ctx context.Context) ([]companies.Company, error)
	FetchResults(ctx context.Context, batchID string) ([]companies.Company, error)
	ExportBatch(ctx context.Context, batchID string) ([]byte, string, error)
	DeleteBatch(ctx context.Context, batchID string) error
}

// SaveFunc persists an exported payload to the user's device.
type SaveFunc func(filename string, payload []byte) error

// ConfirmFunc gates destructive operations on explicit user confirmation.
type ConfirmFunc func(prompt string) bool

// Session sequences user-triggered operations against the aggregator. It
// owns the current selection and the displayed result set; both are replaced
// atomically so overlapping operations never interleave.
type Session struct {
	remote  RemoteAPI
	agg     *companies.Aggregator
	kick    func(batchID string)
	save    SaveFunc
	confirm ConfirmFunc
	notify  func(Notification)

	mu       sync.Mutex
	selected string
	results  []companies.Company
}

// New constructs a Session. kick, save, confirm and notify may be nil.
func New(api RemoteAPI, agg *companies.Aggregator, kick func(string), save SaveFunc, confirm ConfirmFunc, notify func(Notification)) *Session {
	return &Session{
		remote:  api,
		agg:     agg,
		kick:    kick,
		save:    save,
		confirm: confirm,
		notify:  notify,
	}
}

// Upload validates the selected file, submits it, and registers the new
// batch. A failed upload leaves the aggregator untouched.
func (s *Session) Upload(ctx context.Context, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		s.emit("error", "Please select a CSV file")
		return ErrNotCSV
	}
	file, err := os.Open(path)
	if err != nil {
		s.emit("error", "Unable to read "+path)
		return err
	}
	defer file.Close()

	receipt, err := s.remote.SubmitBatch(ctx, filepath.Base(path), file)
	if err != nil {
		s.emit("error", err.Error())
		return err
	}

	if err := s.agg.RegisterNewBatch(receipt.BatchID, receipt.TotalCompanies, receipt.Message); err != nil {
		s.emit("error", "Batch "+receipt.BatchID+" already registered")
		return err
	}
	telemetry.Info("batch.registered", map[string]any{
		"batch_id":        receipt.BatchID,
		"total_companies": receipt.TotalCompanies,
	})
	s.emit("info", receipt.Message)

	// Immediate fetch so the user sees first progress before the next tick.
	if s.kick != nil {
		s.kick(receipt.BatchID)
	}
	return nil
}

// Refresh rebuilds the batch collection from the backend's full company
// listing. Used at startup and on demand.
func (s *Session) Refresh(ctx context.Context) error {
	listing, err := s.remote.FetchCompanies(ctx)
	if err != nil {
		s.emit("error", err.Error())
		return err
	}
	s.agg.LoadAll(listing)
	return nil
}

// ViewResults fetches a batch's results and makes it the current selection.
// When calls overlap, whichever response arrives last wins; selection and
// results are always replaced together.
func (s *Session) ViewResults(ctx context.Context, batchID string) error {
	results, err := s.remote.FetchResults(ctx, batchID)
	if err != nil {
		s.emit("error", err.Error())
		return err
	}
	s.agg.SetResults(batchID, results)
	s.mu.Lock()
	s.selected = batchID
	s.results = results
	s.mu.Unlock()
	return nil
}

// Export downloads the spreadsheet for a batch and hands it to the save
// collaborator. Aggregator state is not touched.
func (s *Session) Export(ctx context.Context, batchID string) error {
	payload, filename, err := s.remote.ExportBatch(ctx, batchID)
	if err != nil {
		s.emit("error", err.Error())
		return err
	}
	if s.save != nil {
		if err := s.save(filename, payload); err != nil {
			s.emit("error", "Unable to save "+filename)
			return err
		}
	}
	s.emit("info", "Exported "+filename)
	return nil
}

// Delete removes a batch after explicit confirmation. The backend delete
// happens first; local state changes only once it succeeds.
func (s *Session) Delete(ctx context.Context, batchID string) error {
	if s.confirm != nil && !s.confirm("Delete batch "+batchID+" and all its results?") {
		return nil
	}
	if err := s.remote.DeleteBatch(ctx, batchID); err != nil {
		s.emit("error", err.Error())
		return err
	}
	s.agg.RemoveBatch(batchID)

	s.mu.Lock()
	if s.selected == batchID {
		s.selected = ""
		s.results = nil
	}
	s.mu.Unlock()

	s.emit("info", "Deleted batch "+batchID)
	return nil
}

// Selected returns the currently selected batch id, empty when none.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// DisplayedResults returns the currently displayed result set.
func (s *Session) DisplayedResults() []companies.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *Session) emit(level, message string) {
	if s.notify == nil {
		return
	}
	s.notify(Notification{Level: level, Message: message})
}
