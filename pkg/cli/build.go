package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/repobuilder/pkg/builder"
)

func (a *app) newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Package every plugin and regenerate repo.json",
		Long: `Build processes every plugin directory of the source tree: it validates
info.json, installs requirements.txt into site-packages, writes
<dest>/<id>/<id>-<version>.zip and stages info.json plus the optional
changelog, icon and fanart files. Existing archives are never overwritten;
bump the plugin version to publish a new one. repo.json is then rebuilt from
the destination directory.
`,
		Args: cobra.NoArgs,
		RunE: a.runBuild,
	}
}

func (a *app) runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := a.buildOnce(ctx)
	if report != nil {
		renderReport(cmd.OutOrStdout(), report)
	}
	return err
}

// buildOnce runs a single build with a fresh installer and writes the
// metrics textfile
func (a *app) buildOnce(ctx context.Context) (*builder.Report, error) {
	inst, err := a.newInstaller(ctx)
	if err != nil {
		return nil, err
	}
	defer inst.Close()

	report, buildErr := builder.New(a.builderOptions(), inst, a.metrics, a.log).Run(ctx)

	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.WithError(err).Warn("Failed to write metrics")
	}

	return report, buildErr
}

// renderReport prints the per-plugin summary of a build
func renderReport(out io.Writer, report *builder.Report) {
	if len(report.Plugins) == 0 {
		return
	}

	t := newTable(out, table.Row{"Plugin", "ID", "Version", "Outcome", "Archive"})
	for _, p := range report.Plugins {
		archive := ""
		if p.Archive != "" {
			archive = filepath.Base(p.Archive)
		}
		t.AppendRow(table.Row{p.Dir, p.ID, p.Version, string(p.Outcome), archive})
	}
	t.AppendFooter(table.Row{
		"", "", "",
		formatCounts(report),
		"",
	})
	t.Render()
}

func formatCounts(report *builder.Report) string {
	return fmt.Sprintf("%d packaged, %d skipped, %d failed",
		report.Count(builder.OutcomePackaged),
		report.Count(builder.OutcomeSkipped),
		report.Count(builder.OutcomeFailed))
}
