package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/repobuilder/pkg/builder"
	"github.com/platinummonkey/repobuilder/pkg/repository"
)

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the plugins listed in the published repo.json",
		Long: `List prints the manifest of the destination directory. Entries whose id is
no longer declared by any source directory are marked as orphaned: the
manifest is rebuilt from the destination, so removing a plugin's source does
not unpublish it.
`,
		Args: cobra.NoArgs,
		RunE: a.runList,
	}
}

func (a *app) runList(cmd *cobra.Command, args []string) error {
	manifest, err := repository.Load(filepath.Join(a.cfg.DestDir, repository.ManifestFile))
	if err != nil {
		return err
	}

	sourceIDs, err := builder.New(a.builderOptions(), nil, nil, a.log).SourceIDs()
	if err != nil {
		a.log.WithError(err).Warn("Cannot read the source tree; orphan detection disabled")
		sourceIDs = nil
	}

	entries, err := repository.Entries(manifest, a.cfg.DestDir, sourceIDs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No plugins published")
		return nil
	}

	t := newTable(out, table.Row{"ID", "Name", "Version", "Author", "Tags", "Archives", "Status"})
	for _, e := range entries {
		status := ""
		if e.Orphaned {
			status = "orphaned"
		}
		t.AppendRow(table.Row{e.ID, e.Name, e.Version, e.Author, strings.Join(e.Tags, ", "), strings.Join(e.Archives, ", "), status})
	}
	t.Render()
	return nil
}
