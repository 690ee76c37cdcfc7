package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/repobuilder/pkg/builder"
)

func (a *app) newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every plugin descriptor without writing anything",
		Long: `Validate loads every plugin's info.json and the source repo.json and reports
missing required fields, malformed JSON, unsafe ids and duplicate ids. With
--strict, descriptors are also checked against the info.json schema and
versions must be semantic versions.
`,
		Args: cobra.NoArgs,
		RunE: a.runValidate,
	}
}

func (a *app) runValidate(cmd *cobra.Command, args []string) error {
	result, err := builder.New(a.builderOptions(), nil, nil, a.log).Check()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(result.Descriptors) > 0 {
		t := newTable(out, table.Row{"Plugin", "ID", "Version", "Name"})
		for _, desc := range result.Descriptors {
			t.AppendRow(table.Row{desc.Dir, desc.ID, desc.Version, desc.Name})
		}
		t.Render()
		fmt.Fprintln(out)
	}

	if len(result.Issues) > 0 {
		t := newTable(out, table.Row{"Plugin", "Field", "Severity", "Message"})
		for _, issue := range result.Issues {
			t.AppendRow(table.Row{issue.Plugin, issue.Field, issue.Severity, issue.Message})
		}
		t.Render()
		fmt.Fprintln(out)
	}

	if result.Failed() {
		return fmt.Errorf("validation failed: %d issue(s) found", len(result.Issues))
	}

	fmt.Fprintf(out, "All %d plugin(s) valid\n", len(result.Descriptors))
	return nil
}
