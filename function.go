package xone_sync

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	"arctica.com.br/xone-sync/sync"
)

func init() {
	// Register the pipeline with the Functions Framework: one HTTP trigger
	// for manual runs, one Pub/Sub trigger for the scheduler.
	functions.HTTP("XoneSyncHttp", xoneSyncHttp)
	functions.CloudEvent("XoneSyncPubSub", xoneSyncPubSub)
}

func runSync(ctx context.Context) (*sync.RunSummary, error) {
	cfg, err := sync.Load()
	if err != nil {
		return nil, err
	}
	if err := sync.ApplyKSMCredentials(cfg); err != nil {
		return nil, err
	}

	logger, err := sync.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()

	return sync.Run(ctx, cfg, logger)
}

func printSummary(w io.Writer, summary *sync.RunSummary) {
	if summary == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Users fetched: %d\n", summary.UsersFetched)
	_, _ = fmt.Fprintf(w, "Users filtered out: %d\n", summary.UsersFiltered)
	printReport(w, summary.Departments)
	printReport(w, summary.Collaborators)
}

func printReport(w io.Writer, report *sync.PublishReport) {
	if report == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %d sent, %d failed\n", report.Collection, report.Sent, report.Failed)
	for _, entry := range report.Entries {
		switch {
		case entry.DryRun:
			_, _ = fmt.Fprintf(w, "\twould send %s (%d records)\n", entry.Name, entry.Records)
		case entry.Error != "":
			_, _ = fmt.Fprintf(w, "\tfailed %s: %s\n", entry.Name, entry.Error)
		default:
			_, _ = fmt.Fprintf(w, "\tsent %s (%d records)\n", entry.Name, entry.Records)
		}
	}
}

func xoneSyncHttp(w http.ResponseWriter, r *http.Request) {
	summary, err := runSync(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !summary.Ok() {
		w.WriteHeader(http.StatusInternalServerError)
	}
	printSummary(w, summary)
}

func xoneSyncPubSub(ctx context.Context, _ event.Event) error {
	summary, err := runSync(ctx)
	if err != nil {
		return err
	}
	if !summary.Ok() {
		return fmt.Errorf("sync finished with failures: %w", summary.Err())
	}
	return nil
}
