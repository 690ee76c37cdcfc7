package cli

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func (a *app) newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rebuild on a cron schedule",
		Long: `Schedule rebuilds the repository on a cron schedule (standard five-field
expressions or descriptors such as @hourly). A build that is still running
when the next one is due causes that run to be skipped.

Example:
  repobuilder schedule --cron "*/15 * * * *"
`,
		Args: cobra.NoArgs,
		RunE: a.runSchedule,
	}
	cmd.Flags().StringVar(&a.flags.schedule, "cron", "", "Cron expression for rebuilds")
	return cmd
}

func (a *app) runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if a.cfg.Schedule == "" {
		return fmt.Errorf("a cron expression is required (--cron or REPOBUILDER_SCHEDULE)")
	}

	c, err := a.newScheduler(ctx, cmd)
	if err != nil {
		return err
	}

	c.Start()
	a.log.Infof("Scheduled rebuilds: %s", a.cfg.Schedule)

	<-ctx.Done()

	// Stop the cron scheduler
	stopCtx := c.Stop()
	<-stopCtx.Done()
	a.log.Info("Scheduler stopped")
	return nil
}

// newScheduler registers the rebuild job; overlapping runs are skipped
func (a *app) newScheduler(ctx context.Context, cmd *cobra.Command) (*cron.Cron, error) {
	logger := cron.PrintfLogger(a.log)
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(a.cfg.Schedule, func() {
		report, err := a.buildOnce(ctx)
		if report != nil {
			renderReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			a.log.WithError(err).Error("Scheduled build failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", a.cfg.Schedule, err)
	}

	return c, nil
}
