package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"analyzer-console/internal/bootstrap"
	"analyzer-console/internal/companies"
	"analyzer-console/internal/session"
	"analyzer-console/internal/shared/config"
)

const usage = `usage: console <command> [args]

commands:
  list                 show all batches
  upload <file.csv>    submit a batch and watch it to completion
  watch                poll all in-flight batches until done
  results <batch-id>   show per-company results for a batch
  export <batch-id>    download the spreadsheet export
  delete <batch-id>    delete a batch (asks for confirmation)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	app := bootstrap.Build(cfg, bootstrap.Options{
		Confirm: promptConfirm,
		Notify:  printNotification,
	})
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "list":
		err = runList(ctx, app)
	case "upload":
		err = runUpload(ctx, app, args)
	case "watch":
		err = runWatch(ctx, app)
	case "results":
		err = runResults(ctx, app, args)
	case "export":
		err = requireBatchArg(args, func(id string) error { return app.Session.Export(ctx, id) })
	case "delete":
		err = requireBatchArg(args, func(id string) error { return app.Session.Delete(ctx, id) })
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		os.Exit(1)
	}
}

func requireBatchArg(args []string, fn func(batchID string) error) error {
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	return fn(args[0])
}

func runList(ctx context.Context, app *bootstrap.App) error {
	if err := app.Session.Refresh(ctx); err != nil {
		return err
	}
	renderBatches(app)
	return nil
}

func runUpload(ctx context.Context, app *bootstrap.App, args []string) error {
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := app.Session.Upload(ctx, args[0]); err != nil {
		return err
	}
	return watchLoop(ctx, app)
}

func runWatch(ctx context.Context, app *bootstrap.App) error {
	if err := app.Session.Refresh(ctx); err != nil {
		return err
	}
	return watchLoop(ctx, app)
}

// watchLoop renders batch state each interval until nothing is left to poll
// or the user interrupts.
func watchLoop(ctx context.Context, app *bootstrap.App) error {
	app.Poller.Start()
	ticker := time.NewTicker(app.Config.PollInterval)
	defer ticker.Stop()

	for {
		renderBatches(app)
		if len(app.Aggregator.ActiveBatchIDs()) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runResults(ctx context.Context, app *bootstrap.App, args []string) error {
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := app.Session.ViewResults(ctx, args[0]); err != nil {
		return err
	}
	renderCompanies(app.Session.DisplayedResults())
	return nil
}

func renderBatches(app *bootstrap.App) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tUPLOADED\tCOMPANIES\tSTATUS\tPROGRESS\tFAILED")
	for _, b := range app.Aggregator.Batches() {
		progress, failed := "-", "-"
		if snap, ok := app.Aggregator.Progress(b.BatchID); ok {
			progress = fmt.Sprintf("%.1f%%", snap.ProgressPercentage)
			failed = fmt.Sprintf("%d", snap.Failed)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			b.BatchID, b.UploadedAt.Format(time.RFC3339), b.TotalCompanies, b.Status, progress, failed)
	}
	w.Flush()
}

func renderCompanies(results []companies.Company) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDOMAIN\tSTATUS\tNATIVE\tNATIVE SCORE\tFIT SCORE")
	for _, c := range results {
		native, nativeScore, fitScore := "-", "-", "-"
		if c.IsDigitalNative != nil {
			native = fmt.Sprintf("%t", *c.IsDigitalNative)
		}
		if c.DigitalNativeScore != nil {
			nativeScore = fmt.Sprintf("%.0f", *c.DigitalNativeScore)
		}
		if c.IncidentIOFitScore != nil {
			fitScore = fmt.Sprintf("%.0f", *c.IncidentIOFitScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Name, c.Domain, c.Status, native, nativeScore, fitScore)
	}
	w.Flush()
}

func promptConfirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printNotification(n session.Notification) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
}
