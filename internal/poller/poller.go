package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"analyzer-console/internal/companies"
	"analyzer-console/internal/shared/telemetry"
)

// ProgressFetcher is the slice of the remote client the poller needs.
type ProgressFetcher interface {
	FetchProgress(ctx context.Context, batchID string) (companies.ProgressSnapshot, error)
}

// Poller periodically fetches progress for every non-terminal batch and
// merges the snapshots into the aggregator. The active set is recomputed
// from the aggregator on every tick, so a batch registered between ticks is
// picked up within one interval and a completed one drops out just as fast.
type Poller struct {
	fetcher  ProgressFetcher
	agg      *companies.Aggregator
	interval time.Duration
	onError  func(batchID string, err error)

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// New constructs a Poller. onError receives isolated per-batch fetch
// failures and may be nil.
func New(fetcher ProgressFetcher, agg *companies.Aggregator, interval time.Duration, onError func(batchID string, err error)) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		fetcher:  fetcher,
		agg:      agg,
		interval: interval,
		onError:  onError,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. It returns immediately; calling it more
// than once is a no-op.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.loop()
	})
}

func (p *Poller) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollActive()
		}
	}
}

// pollActive fetches progress for every active batch concurrently. A failure
// for one batch never aborts the others or the ticker.
func (p *Poller) pollActive() {
	ids := p.agg.ActiveBatchIDs()
	if len(ids) == 0 {
		return
	}
	g := new(errgroup.Group)
	for _, id := range ids {
		batchID := id
		g.Go(func() error {
			p.fetchOne(batchID)
			return nil
		})
	}
	g.Wait()
}

// Kick performs one out-of-band progress fetch for a batch, used right after
// registration so the first progress shows up before the next tick.
func (p *Poller) Kick(batchID string) {
	p.fetchOne(batchID)
}

func (p *Poller) fetchOne(batchID string) {
	snapshot, err := p.fetcher.FetchProgress(p.ctx, batchID)
	if err != nil {
		telemetry.Error("poll.progress_failed", map[string]any{
			"batch_id": batchID,
			"error":    err.Error(),
		})
		if p.onError != nil {
			p.onError(batchID, err)
		}
		return
	}
	p.agg.MergeProgress(batchID, snapshot)
}

// Stop cancels the loop. It is safe to call any number of times; no further
// ticks fire after the first call, and in-flight fetches drain harmlessly.
func (p *Poller) Stop() {
	p.stopOnce.Do(p.cancel)
	if p.started.Load() {
		<-p.done
	}
}
