package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arctica.com.br/xone-sync/sync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags sync.RunConfig

	cmd := &cobra.Command{
		Use:           "xone-sync",
		Short:         "Synchronize Entra ID departments and collaborators into XoneCloud",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := sync.Load()
			if err != nil {
				return err
			}
			if err := sync.ApplyKSMCredentials(cfg); err != nil {
				return err
			}
			applyFlagOverrides(cmd, &cfg.Run, flags)

			logger, err := sync.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			summary, err := sync.Run(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if !summary.Ok() {
				logger.Error("run finished with record failures", zap.Error(summary.Err()))
				return summary.Err()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.SendDepartments, "send-departments", true, "publish the department set")
	cmd.Flags().BoolVar(&flags.DeptDryRun, "dept-dry-run", false, "log department writes instead of sending them")
	cmd.Flags().BoolVar(&flags.DeptPerRecord, "dept-per-record", false, "one write call per department")
	cmd.Flags().BoolVar(&flags.SendCollaborators, "send-collaborators", true, "publish the collaborator list")
	cmd.Flags().BoolVar(&flags.CollabDryRun, "collab-dry-run", false, "log collaborator writes instead of sending them")
	cmd.Flags().BoolVar(&flags.CollabPerRecord, "collab-per-record", false, "one write call per collaborator")
	cmd.Flags().IntVar(&flags.CollabBatchSize, "collab-batch-size", 0, "max collaborators per write call")
	cmd.Flags().StringVar(&flags.TestSingleUser, "test-single-user", "", "send only the collaborator matching this id or username")
	cmd.Flags().BoolVar(&flags.OnlyEnabled, "only-enabled", false, "drop disabled accounts")
	cmd.Flags().BoolVar(&flags.ExcludeServiceAccounts, "exclude-service-accounts", true, "drop service accounts")
	cmd.Flags().BoolVar(&flags.ExcludeWithoutDepartment, "exclude-without-department", true, "drop users without a department label")

	return cmd
}

// applyFlagOverrides copies only the flags the user actually set over the
// environment-derived config.
func applyFlagOverrides(cmd *cobra.Command, run *sync.RunConfig, flags sync.RunConfig) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("send-departments") {
		run.SendDepartments = flags.SendDepartments
	}
	if set("dept-dry-run") {
		run.DeptDryRun = flags.DeptDryRun
	}
	if set("dept-per-record") {
		run.DeptPerRecord = flags.DeptPerRecord
	}
	if set("send-collaborators") {
		run.SendCollaborators = flags.SendCollaborators
	}
	if set("collab-dry-run") {
		run.CollabDryRun = flags.CollabDryRun
	}
	if set("collab-per-record") {
		run.CollabPerRecord = flags.CollabPerRecord
	}
	if set("collab-batch-size") {
		run.CollabBatchSize = flags.CollabBatchSize
	}
	if set("test-single-user") {
		run.TestSingleUser = flags.TestSingleUser
	}
	if set("only-enabled") {
		run.OnlyEnabled = flags.OnlyEnabled
	}
	if set("exclude-service-accounts") {
		run.ExcludeServiceAccounts = flags.ExcludeServiceAccounts
	}
	if set("exclude-without-department") {
		run.ExcludeWithoutDepartment = flags.ExcludeWithoutDepartment
	}
}
