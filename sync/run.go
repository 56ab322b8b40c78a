package sync

import (
	"context"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

// Run executes the full pipeline: fetch the roster from Entra ID, build the
// target collections, publish whichever collections the config enables.
// Fatal errors (configuration, authentication) are returned; record-level
// failures land in the summary's reports.
func Run(ctx context.Context, cfg *Config, log *zap.Logger) (*RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cleanhttp.DefaultClient()
	client.Timeout = cfg.HTTP.Timeout()

	source := NewEntraSource(cfg.Azure, client, cfg.HTTP.Retry(), log)
	publisher := NewXoneClient(cfg.Xone, client, cfg.HTTP.Retry(), log)
	return runPipeline(ctx, cfg, source, publisher, log)
}

func runPipeline(ctx context.Context, cfg *Config, source DirectorySource, publisher *XoneClient, log *zap.Logger) (*RunSummary, error) {
	if err := source.Populate(ctx); err != nil {
		return nil, err
	}

	var users []*DirectoryUser
	source.Users(func(u *DirectoryUser) {
		users = append(users, u)
	})

	departments, collaborators := Build(users, cfg.Run)
	summary := &RunSummary{
		UsersFetched:  len(users),
		UsersFiltered: len(users) - len(collaborators),
	}
	log.Info("collections built",
		zap.Int("users_fetched", summary.UsersFetched),
		zap.Int("users_filtered", summary.UsersFiltered),
		zap.Int("departments", len(departments)),
		zap.Int("collaborators", len(collaborators)))

	if cfg.Run.SendDepartments {
		report, err := publisher.PublishDepartments(ctx, departments, cfg.Run)
		summary.Departments = report
		if err != nil {
			return summary, err
		}
	} else {
		log.Info("department publish disabled")
	}

	if cfg.Run.SendCollaborators {
		report, err := publisher.PublishCollaborators(ctx, collaborators, cfg.Run)
		summary.Collaborators = report
		if err != nil {
			return summary, err
		}
	} else {
		log.Info("collaborator publish disabled")
	}

	logReport(log, summary.Departments)
	logReport(log, summary.Collaborators)
	return summary, nil
}

func logReport(log *zap.Logger, report *PublishReport) {
	if report == nil {
		return
	}
	log.Info("publish finished",
		zap.String("collection", report.Collection),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
}
