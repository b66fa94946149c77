package bootstrap

import (
	"os"
	"path/filepath"

	"analyzer-console/internal/companies"
	"analyzer-console/internal/poller"
	"analyzer-console/internal/remote"
	"analyzer-console/internal/session"
	"analyzer-console/internal/shared/config"
)

// App holds the wired orchestrator: one instance per session, torn down
// explicitly via Close. There is no ambient state outside of it.
type App struct {
	Config     config.Config
	Client     *remote.Client
	Aggregator *companies.Aggregator
	Poller     *poller.Poller
	Session    *session.Session
}

// Options carries the presentation-side collaborators.
type Options struct {
	Save    session.SaveFunc
	Confirm session.ConfirmFunc
	Notify  func(session.Notification)
}

// Build wires config, remote client, aggregator, poller and session. The
// poller is constructed but not started; callers decide when polling begins.
func Build(cfg config.Config, opts Options) *App {
	agg := companies.NewAggregator(nil)
	client := remote.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)

	onPollError := func(batchID string, err error) {
		if opts.Notify != nil {
			opts.Notify(session.Notification{Level: "error", Message: err.Error()})
		}
	}
	p := poller.New(client, agg, cfg.PollInterval, onPollError)

	save := opts.Save
	if save == nil {
		save = func(filename string, payload []byte) error {
			return os.WriteFile(filepath.Join(cfg.DownloadDir, filename), payload, 0o644)
		}
	}

	sess := session.New(client, agg, p.Kick, save, opts.Confirm, opts.Notify)

	return &App{
		Config:     cfg,
		Client:     client,
		Aggregator: agg,
		Poller:     p,
		Session:    sess,
	}
}

// Close stops the poller. Safe to call more than once.
func (a *App) Close() {
	a.Poller.Stop()
}
