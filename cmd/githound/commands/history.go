package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/analysis"
)

// historyFlags holds the filter flags of the history command.
type historyFlags struct {
	format  string
	branch  string
	author  string
	message string
	since   string
	until   string
	file    string
	limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(app *App) *cobra.Command {
	hf := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history [repository]",
		Short: "Show commit history with optional filters",
		Long: `Show commit history, newest first.

Author filters match name or email, case-insensitive; a pattern with
* or ? is treated as a glob, anything else as a substring. Time flags
accept a duration relative to now ("24h"), a date ("2024-01-01") or
RFC3339.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runHistory(cobraCmd, args, app, hf)
		},
	}

	cmd.Flags().StringVarP(&hf.format, "format", "f", formatTable, "output format (table, json, yaml)")
	cmd.Flags().StringVarP(&hf.branch, "branch", "b", "", "branch to walk (default: HEAD)")
	cmd.Flags().StringVarP(&hf.author, "author", "a", "", "author name or email filter")
	cmd.Flags().StringVarP(&hf.message, "message", "m", "", "commit message substring filter")
	cmd.Flags().StringVar(&hf.since, "since", "", "only commits after this time")
	cmd.Flags().StringVar(&hf.until, "until", "", "only commits before this time")
	cmd.Flags().StringVar(&hf.file, "file", "", "only commits touching this path")
	cmd.Flags().IntVarP(&hf.limit, "limit", "n", 0, "maximum commits to show (0 = config history limit)")

	return cmd
}

func runHistory(cobraCmd *cobra.Command, args []string, app *App, hf *historyFlags) error {
	repoPath, err := resolveRepoPath(args, 0)
	if err != nil {
		return err
	}

	filter, err := historyFilter(app, hf)
	if err != nil {
		return err
	}

	analyzer, err := analysis.Open(repoPath, app.Logger())
	if err != nil {
		return err
	}
	defer analyzer.Close()

	commits, err := analyzer.Commits(cobraCmd.Context(), filter)
	if err != nil {
		return err
	}

	return renderCommits(cobraCmd.OutOrStdout(), commits, hf.format)
}

func historyFilter(app *App, hf *historyFlags) (analysis.Filter, error) {
	since, err := parseTimeFlag(hf.since)
	if err != nil {
		return analysis.Filter{}, err
	}

	until, err := parseTimeFlag(hf.until)
	if err != nil {
		return analysis.Filter{}, err
	}

	limit := hf.limit
	if limit <= 0 {
		limit = app.Config().Analysis.HistoryLimit
	}

	return analysis.Filter{
		Branch:         hf.branch,
		AuthorPattern:  hf.author,
		MessagePattern: hf.message,
		Since:          since,
		Until:          until,
		FilePath:       hf.file,
		MaxCount:       limit,
	}, nil
}

func renderCommits(w io.Writer, commits []analysis.Commit, format string) error {
	switch format {
	case formatJSON:
		return renderJSON(w, commits)
	case formatYAML:
		return renderYAML(w, commits)
	case formatTable:
		renderCommitTable(w, commits)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderCommitTable(w io.Writer, commits []analysis.Commit) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Hash", "Date", "Author", "Message", "Changes"})

	for _, c := range commits {
		t.AppendRow(table.Row{
			color.YellowString(shortHash(c.Hash)),
			c.Date.Format("2006-01-02 15:04"),
			c.Author,
			summaryLine(c.Message),
			fmt.Sprintf("%s %s",
				color.GreenString("+%d", c.Insertions),
				color.RedString("-%d", c.Deletions)),
		})
	}

	t.Render()
	fmt.Fprintf(w, "%d commits\n", len(commits))
}
