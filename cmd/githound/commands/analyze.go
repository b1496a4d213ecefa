package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/analysis"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(app *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "analyze [repository]",
		Short: "Analyze a Git repository and show summary information",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			repoPath, err := resolveRepoPath(args, 0)
			if err != nil {
				return err
			}

			analyzer, err := analysis.Open(repoPath, app.Logger())
			if err != nil {
				return err
			}
			defer analyzer.Close()

			info, err := analyzer.RepositoryInfo(cobraCmd.Context())
			if err != nil {
				return err
			}

			return renderRepositoryInfo(cobraCmd.OutOrStdout(), info, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json, yaml)")

	return cmd
}

func renderRepositoryInfo(w io.Writer, info *analysis.RepositoryInfo, format string) error {
	switch format {
	case formatJSON:
		return renderJSON(w, info)
	case formatYAML:
		return renderYAML(w, info)
	case formatTable:
		renderRepositoryTable(w, info)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderRepositoryTable(w io.Writer, info *analysis.RepositoryInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Repository", info.Name})

	t.AppendRows([]table.Row{
		{"Path", info.Path},
		{"Commits", humanize.Comma(int64(info.TotalCommits))},
		{"Files", humanize.Comma(int64(info.TotalFiles))},
		{"Authors", humanize.Comma(int64(info.TotalAuthors))},
		{"Branches", strings.Join(info.Branches, ", ")},
		{"Tags", strings.Join(info.Tags, ", ")},
	})

	if info.FirstCommitDate != nil {
		t.AppendRow(table.Row{"First commit", info.FirstCommitDate.Format("2006-01-02 15:04")})
	}

	if info.LastCommitDate != nil {
		t.AppendRow(table.Row{"Last commit", info.LastCommitDate.Format("2006-01-02 15:04")})
	}

	t.Render()
}
