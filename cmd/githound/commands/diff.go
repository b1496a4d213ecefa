package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/analysis"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(app *App) *cobra.Command {
	var (
		format       string
		branches     bool
		filePatterns []string
		withPatch    bool
		contextLines int
	)

	cmd := &cobra.Command{
		Use:   "diff <from> <to> [repository]",
		Short: "Compare two commits or branches",
		Long: `Compare two revisions and report per-file changes.

By default the arguments are revision expressions (hashes, tags,
HEAD~2). With --branches they are branch names.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			repoPath, err := resolveRepoPath(args, 2)
			if err != nil {
				return err
			}

			analyzer, err := analysis.Open(repoPath, app.Logger())
			if err != nil {
				return err
			}
			defer analyzer.Close()

			opts := analysis.DiffOptions{
				FilePatterns: filePatterns,
				ContextLines: contextLines,
				IncludePatch: withPatch,
			}

			var result *analysis.DiffResult
			if branches {
				result, err = analyzer.DiffBranches(cobraCmd.Context(), args[0], args[1], opts)
			} else {
				result, err = analyzer.DiffCommits(cobraCmd.Context(), args[0], args[1], opts)
			}

			if err != nil {
				return err
			}

			return renderDiff(cobraCmd.OutOrStdout(), result, format, withPatch)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json, yaml)")
	cmd.Flags().BoolVar(&branches, "branches", false, "treat arguments as branch names")
	cmd.Flags().StringSliceVar(&filePatterns, "files", nil, "glob allow-list of file paths")
	cmd.Flags().BoolVarP(&withPatch, "patch", "p", false, "include unified patch text")
	cmd.Flags().IntVar(&contextLines, "context", 0, "patch context lines (0 = git default)")

	return cmd
}

func renderDiff(w io.Writer, result *analysis.DiffResult, format string, withPatch bool) error {
	switch format {
	case formatJSON:
		return renderJSON(w, result)
	case formatYAML:
		return renderYAML(w, result)
	case formatTable:
		renderDiffTable(w, result, withPatch)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderDiffTable(w io.Writer, result *analysis.DiffResult, withPatch bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Change", "Insertions", "Deletions"})

	for _, fd := range result.FileDiffs {
		path := fd.FilePath
		if fd.OriginalPath != "" {
			path = fd.OriginalPath + " -> " + fd.FilePath
		}

		t.AppendRow(table.Row{
			path,
			fd.ChangeType,
			color.GreenString("+%d", fd.Insertions),
			color.RedString("-%d", fd.Deletions),
		})
	}

	t.Render()

	fmt.Fprintf(w, "%d files changed, %s insertions(+), %s deletions(-)\n",
		result.FilesChanged,
		color.GreenString("%d", result.Insertions),
		color.RedString("%d", result.Deletions))

	if withPatch {
		for _, fd := range result.FileDiffs {
			if fd.Patch != "" {
				fmt.Fprintln(w)
				fmt.Fprint(w, fd.Patch)
			}
		}
	}
}
