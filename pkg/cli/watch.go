package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/repobuilder/pkg/watch"
)

func (a *app) newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever the source tree changes",
		Long: `Watch builds once, then watches the source tree and rebuilds after it has
been quiet for --delay. Changes under a plugin's site-packages directory and
.git directories are ignored. Builds never overlap.
`,
		Args: cobra.NoArgs,
		RunE: a.runWatch,
	}
	cmd.Flags().StringVar(&a.flags.delay, "delay", "", "Quiet period after a change before rebuilding (default 2s)")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := watch.New(a.cfg.SourceDir, a.cfg.WatchDelay, a.log)
	if err != nil {
		return err
	}
	defer w.Close()

	rebuild := func(ctx context.Context) error {
		report, err := a.buildOnce(ctx)
		if report != nil {
			renderReport(cmd.OutOrStdout(), report)
		}
		return err
	}

	if err := rebuild(ctx); err != nil {
		a.log.WithError(err).Error("Initial build failed")
	}

	return w.Run(ctx, rebuild)
}
