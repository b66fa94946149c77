package companies

import (
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func company(id, batchID string, status CompanyStatus, createdAt time.Time) Company {
	return Company{
		ID:        id,
		BatchID:   batchID,
		Name:      "co-" + id,
		Domain:    id + ".example.com",
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestDeriveBatchStatus(t *testing.T) {
	base := fixedNow()
	cases := []struct {
		name     string
		members  []Company
		snapshot *ProgressSnapshot
		want     BatchStatus
	}{
		{"all terminal, no snapshot", []Company{
			company("a", "b1", StatusCompleted, base),
			company("b", "b1", StatusError, base),
		}, nil, BatchCompleted},
		{"one pending forces processing", []Company{
			company("a", "b1", StatusCompleted, base),
			company("b", "b1", StatusPending, base),
		}, nil, BatchProcessing},
		{"one analyzing forces processing", []Company{
			company("a", "b1", StatusAnalyzing, base),
		}, nil, BatchProcessing},
		{"non-terminal snapshot overrides terminal companies", []Company{
			company("a", "b1", StatusCompleted, base),
		}, &ProgressSnapshot{Status: "processing"}, BatchProcessing},
		{"terminal snapshot with no companies", nil,
			&ProgressSnapshot{Status: "completed"}, BatchCompleted},
		{"error snapshot is terminal", nil,
			&ProgressSnapshot{Status: "error"}, BatchCompleted},
	}
	for _, tc := range cases {
		if got := DeriveBatchStatus(tc.members, tc.snapshot); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestLoadAllGroupsAndOrders(t *testing.T) {
	agg := NewAggregator(fixedNow)
	base := fixedNow()
	listing := []Company{
		company("a1", "old", StatusCompleted, base.Add(-2*time.Hour)),
		company("b1", "new", StatusCompleted, base.Add(-time.Minute)),
		company("a2", "old", StatusCompleted, base.Add(-90*time.Minute)),
		company("x", "", StatusPending, base.Add(-time.Hour)),
	}
	agg.LoadAll(listing)

	batches := agg.Batches()
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[0].BatchID != "new" || batches[1].BatchID != UnknownBatchID || batches[2].BatchID != "old" {
		t.Fatalf("unexpected display order: %s, %s, %s", batches[0].BatchID, batches[1].BatchID, batches[2].BatchID)
	}

	old, ok := agg.Batch("old")
	if !ok {
		t.Fatalf("expected batch old")
	}
	if old.TotalCompanies != 2 {
		t.Fatalf("expected 2 companies in old, got %d", old.TotalCompanies)
	}
	// uploaded_at is the earliest member's created_at.
	if !old.UploadedAt.Equal(base.Add(-2 * time.Hour)) {
		t.Fatalf("unexpected uploaded_at: %v", old.UploadedAt)
	}
	// insertion order preserved within the batch.
	if old.Companies[0].ID != "a1" || old.Companies[1].ID != "a2" {
		t.Fatalf("member order not preserved: %s, %s", old.Companies[0].ID, old.Companies[1].ID)
	}
	if old.Status != BatchCompleted {
		t.Fatalf("expected old completed, got %s", old.Status)
	}

	unknown, _ := agg.Batch(UnknownBatchID)
	if unknown.Status != BatchProcessing {
		t.Fatalf("expected unknown batch processing, got %s", unknown.Status)
	}
}

func TestLoadAllIsStable(t *testing.T) {
	base := fixedNow()
	listing := []Company{
		company("a1", "old", StatusCompleted, base.Add(-2*time.Hour)),
		company("b1", "new", StatusAnalyzing, base.Add(-time.Minute)),
		company("a2", "old", StatusCompleted, base.Add(-90*time.Minute)),
	}

	agg := NewAggregator(fixedNow)
	agg.LoadAll(listing)
	first := agg.Batches()
	agg.LoadAll(listing)
	second := agg.Batches()

	if len(first) != len(second) {
		t.Fatalf("batch count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].BatchID != second[i].BatchID {
			t.Fatalf("ordering changed at %d: %s vs %s", i, first[i].BatchID, second[i].BatchID)
		}
		if len(first[i].Companies) != len(second[i].Companies) {
			t.Fatalf("membership changed for %s", first[i].BatchID)
		}
		for j := range first[i].Companies {
			if first[i].Companies[j].ID != second[i].Companies[j].ID {
				t.Fatalf("member order changed for %s", first[i].BatchID)
			}
		}
	}
}

func TestRegisterNewBatch(t *testing.T) {
	agg := NewAggregator(fixedNow)
	if err := agg.RegisterNewBatch("b1", 5, "Started analysis of 5 companies"); err != nil {
		t.Fatalf("register: %v", err)
	}
	b, ok := agg.Batch("b1")
	if !ok {
		t.Fatalf("expected batch b1")
	}
	if b.Status != BatchProcessing {
		t.Fatalf("fresh batch must start processing, got %s", b.Status)
	}
	if b.TotalCompanies != 5 || len(b.Companies) != 0 {
		t.Fatalf("unexpected batch shape: total=%d members=%d", b.TotalCompanies, len(b.Companies))
	}
	if !b.UploadedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected uploaded_at: %v", b.UploadedAt)
	}

	if err := agg.RegisterNewBatch("b1", 5, ""); err != ErrDuplicateBatch {
		t.Fatalf("expected ErrDuplicateBatch, got %v", err)
	}
}

func TestMergeProgressCompletesBatch(t *testing.T) {
	agg := NewAggregator(fixedNow)
	if err := agg.RegisterNewBatch("b1", 3, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	agg.MergeProgress("b1", ProgressSnapshot{
		BatchID: "b1", TotalCompanies: 3, Completed: 1, Failed: 0,
		ProgressPercentage: 33.3, Status: "processing",
	})
	if b, _ := agg.Batch("b1"); b.Status != BatchProcessing {
		t.Fatalf("expected processing, got %s", b.Status)
	}
	if ids := agg.ActiveBatchIDs(); len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("expected b1 active, got %v", ids)
	}

	agg.MergeProgress("b1", ProgressSnapshot{
		BatchID: "b1", TotalCompanies: 3, Completed: 3, Failed: 0,
		ProgressPercentage: 100.0, Status: "completed",
	})
	if b, _ := agg.Batch("b1"); b.Status != BatchCompleted {
		t.Fatalf("expected completed, got %s", b.Status)
	}
	if ids := agg.ActiveBatchIDs(); len(ids) != 0 {
		t.Fatalf("completed batch must drop out of the active set, got %v", ids)
	}
}

func TestMergeProgressPartial(t *testing.T) {
	agg := NewAggregator(fixedNow)
	if err := agg.RegisterNewBatch("b1", 5, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	agg.MergeProgress("b1", ProgressSnapshot{
		BatchID: "b1", TotalCompanies: 5, Completed: 2, Failed: 1,
		ProgressPercentage: 60.0, Status: "processing",
	})

	b, _ := agg.Batch("b1")
	if b.Status != BatchProcessing {
		t.Fatalf("expected processing, got %s", b.Status)
	}
	snap, ok := agg.Progress("b1")
	if !ok {
		t.Fatalf("expected cached snapshot")
	}
	if snap.ProgressPercentage != 60.0 || snap.Failed != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestMergeProgressIdempotent(t *testing.T) {
	agg := NewAggregator(fixedNow)
	if err := agg.RegisterNewBatch("b1", 3, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	snap := ProgressSnapshot{
		BatchID: "b1", TotalCompanies: 3, Completed: 2, Failed: 0,
		ProgressPercentage: 66.7, Status: "processing",
	}
	agg.MergeProgress("b1", snap)
	once, _ := agg.Batch("b1")
	onceSnap, _ := agg.Progress("b1")

	agg.MergeProgress("b1", snap)
	twice, _ := agg.Batch("b1")
	twiceSnap, _ := agg.Progress("b1")

	if once.Status != twice.Status || onceSnap != twiceSnap {
		t.Fatalf("merge not idempotent: %+v vs %+v", onceSnap, twiceSnap)
	}
}

func TestRemoveBatchNoResurrection(t *testing.T) {
	agg := NewAggregator(fixedNow)
	if err := agg.RegisterNewBatch("b1", 3, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	agg.RemoveBatch("b1")
	agg.RemoveBatch("b1") // idempotent

	// A late snapshot for a deleted batch is silently discarded.
	agg.MergeProgress("b1", ProgressSnapshot{BatchID: "b1", Status: "processing"})
	if agg.Len() != 0 {
		t.Fatalf("deleted batch resurrected")
	}
	if _, ok := agg.Progress("b1"); ok {
		t.Fatalf("snapshot cached for deleted batch")
	}
}

func TestSetResultsRefreshesCompanies(t *testing.T) {
	agg := NewAggregator(fixedNow)
	if err := agg.RegisterNewBatch("b1", 2, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	agg.MergeProgress("b1", ProgressSnapshot{BatchID: "b1", Status: "completed"})

	results := []Company{
		company("a", "b1", StatusCompleted, fixedNow()),
		company("b", "b1", StatusError, fixedNow()),
	}
	agg.SetResults("b1", results)

	b, _ := agg.Batch("b1")
	if len(b.Companies) != 2 {
		t.Fatalf("expected refreshed companies, got %d", len(b.Companies))
	}
	if b.Status != BatchCompleted {
		t.Fatalf("expected completed, got %s", b.Status)
	}
	cached, ok := agg.Results("b1")
	if !ok || len(cached) != 2 {
		t.Fatalf("expected cached results")
	}

	// Unknown batch ids are ignored.
	agg.SetResults("ghost", results)
	if agg.Len() != 1 {
		t.Fatalf("SetResults created a batch")
	}
}
