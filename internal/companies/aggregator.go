package companies

import (
	"sort"
	"sync"
	"time"
)

// Aggregator owns the authoritative in-memory mapping of batch id to batch.
// All mutation goes through its methods; callers only ever see copies.
type Aggregator struct {
	mu      sync.RWMutex
	batches map[string]*batchEntry
	now     func() time.Time
}

type batchEntry struct {
	batch    Batch
	snapshot *ProgressSnapshot
	results  []Company
}

// NewAggregator constructs an empty Aggregator.
func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		batches: make(map[string]*batchEntry),
		now:     now,
	}
}

// LoadAll rebuilds the entire batch collection from a flat company listing.
// Companies are grouped by batch id, insertion order preserved within a
// batch; a company with no batch id lands in the synthetic unknown batch.
// Calling it twice with the same listing yields the same batch set.
func (a *Aggregator) LoadAll(listing []Company) {
	grouped := make(map[string][]Company)
	for _, c := range listing {
		id := c.BatchID
		if id == "" {
			id = UnknownBatchID
		}
		grouped[id] = append(grouped[id], c)
	}

	next := make(map[string]*batchEntry, len(grouped))
	for id, members := range grouped {
		uploadedAt := members[0].CreatedAt
		for _, c := range members[1:] {
			if c.CreatedAt.Before(uploadedAt) {
				uploadedAt = c.CreatedAt
			}
		}
		next[id] = &batchEntry{
			batch: Batch{
				BatchID:        id,
				Companies:      members,
				TotalCompanies: len(members),
				Status:         DeriveBatchStatus(members, nil),
				UploadedAt:     uploadedAt,
			},
		}
	}

	a.mu.Lock()
	a.batches = next
	a.mu.Unlock()
}

// RegisterNewBatch inserts a freshly uploaded batch. It starts processing
// unconditionally until a snapshot or company refresh proves otherwise.
func (a *Aggregator) RegisterNewBatch(batchID string, totalCompanies int, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.batches[batchID]; ok {
		return ErrDuplicateBatch
	}
	a.batches[batchID] = &batchEntry{
		batch: Batch{
			BatchID:        batchID,
			TotalCompanies: totalCompanies,
			Status:         BatchProcessing,
			Message:        message,
			UploadedAt:     a.now().UTC(),
		},
	}
	return nil
}

// MergeProgress caches the snapshot for a batch and rederives its status.
// Unknown batch ids are silently discarded: a late snapshot for a batch that
// was deleted in the meantime must not resurrect it. Snapshots are applied in
// receipt order; no sequence numbers exist to detect a reordered pair.
func (a *Aggregator) MergeProgress(batchID string, snapshot ProgressSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.batches[batchID]
	if !ok {
		return
	}
	entry.snapshot = &snapshot
	entry.batch.Status = DeriveBatchStatus(entry.batch.Companies, entry.snapshot)
}

// SetResults caches fetched results for a batch and refreshes its member
// companies from them. Unknown batch ids are ignored.
func (a *Aggregator) SetResults(batchID string, results []Company) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.batches[batchID]
	if !ok {
		return
	}
	entry.results = results
	entry.batch.Companies = results
	entry.batch.Status = DeriveBatchStatus(entry.batch.Companies, entry.snapshot)
}

// RemoveBatch drops a batch together with its cached snapshot and results.
func (a *Aggregator) RemoveBatch(batchID string) {
	a.mu.Lock()
	delete(a.batches, batchID)
	a.mu.Unlock()
}

// Batches returns a copy of all batches, most recently uploaded first.
func (a *Aggregator) Batches() []Batch {
	a.mu.RLock()
	out := make([]Batch, 0, len(a.batches))
	for _, entry := range a.batches {
		out = append(out, entry.batch)
	}
	a.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// Batch returns one batch by id.
func (a *Aggregator) Batch(batchID string) (Batch, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.batches[batchID]
	if !ok {
		return Batch{}, false
	}
	return entry.batch, true
}

// ActiveBatchIDs returns the ids of batches still worth polling. The set is
// recomputed on every call so newly registered batches are picked up and
// completed ones drop out without the caller holding any state.
func (a *Aggregator) ActiveBatchIDs() []string {
	a.mu.RLock()
	ids := make([]string, 0, len(a.batches))
	for id, entry := range a.batches {
		if entry.batch.Status != BatchCompleted {
			ids = append(ids, id)
		}
	}
	a.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Progress returns the last merged snapshot for a batch, if any.
func (a *Aggregator) Progress(batchID string) (ProgressSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.batches[batchID]
	if !ok || entry.snapshot == nil {
		return ProgressSnapshot{}, false
	}
	return *entry.snapshot, true
}

// Results returns the cached results for a batch, if any.
func (a *Aggregator) Results(batchID string) ([]Company, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.batches[batchID]
	if !ok || entry.results == nil {
		return nil, false
	}
	return entry.results, true
}

// Len returns the number of batches currently held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.batches)
}
