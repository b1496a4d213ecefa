package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/analysis"
)

// NewBlameCommand creates the blame command.
func NewBlameCommand(app *App) *cobra.Command {
	var (
		format    string
		revision  string
		startLine int
		endLine   int
	)

	cmd := &cobra.Command{
		Use:   "blame <file> [repository]",
		Short: "Show line-by-line authorship of a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			repoPath, err := resolveRepoPath(args, 1)
			if err != nil {
				return err
			}

			var lineRange *analysis.LineRange
			if startLine > 0 || endLine > 0 {
				lineRange = &analysis.LineRange{Start: startLine, End: endLine}
			}

			analyzer, err := analysis.Open(repoPath, app.Logger())
			if err != nil {
				return err
			}
			defer analyzer.Close()

			lines, err := analyzer.Blame(cobraCmd.Context(), args[0], revision, lineRange)
			if err != nil {
				return err
			}

			return renderBlame(cobraCmd.OutOrStdout(), lines, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, json, yaml)")
	cmd.Flags().StringVarP(&revision, "rev", "r", "", "revision to blame at (default: HEAD)")
	cmd.Flags().IntVar(&startLine, "start", 0, "first line of the range (1-based)")
	cmd.Flags().IntVar(&endLine, "end", 0, "last line of the range (inclusive)")

	return cmd
}

func renderBlame(w io.Writer, lines []analysis.BlameLine, format string) error {
	switch format {
	case formatJSON:
		return renderJSON(w, lines)
	case formatYAML:
		return renderYAML(w, lines)
	case formatText:
		renderBlameText(w, lines)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderBlameText(w io.Writer, lines []analysis.BlameLine) {
	authorWidth := 0
	for _, line := range lines {
		authorWidth = max(authorWidth, len(line.Author))
	}

	for _, line := range lines {
		fmt.Fprintf(w, "%s %-*s %s %4d) %s\n",
			color.YellowString(shortHash(line.CommitHash)),
			authorWidth, line.Author,
			line.Date.Format("2006-01-02"),
			line.LineNumber,
			line.LineContent)
	}
}
