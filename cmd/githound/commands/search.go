package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/analysis"
	"github.com/githound/githound/internal/search"
)

// searchFlags holds the flags of the search command.
type searchFlags struct {
	format       string
	regex        bool
	fuzzy        float64
	author       string
	message      string
	since        string
	until        string
	extensions   []string
	maxResults   int
	maxCommits   int
	showContext  bool
	contextLines int
	timeout      time.Duration
}

// NewSearchCommand creates the search command.
func NewSearchCommand(app *App) *cobra.Command {
	sf := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <pattern> [repository]",
		Short: "Search file content and commit metadata across history",
		Long: `Search repository history for content matching a pattern.

The newest commit is scanned in full; older commits are scanned on
the files they touched. With --regex the pattern is a regular
expression. With --fuzzy matches tolerate typos: a line matches when
its best token's normalized similarity reaches the threshold. Pass an
empty pattern ("") with --author or --message for metadata-only
search.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runSearch(cobraCmd, args, app, sf)
		},
	}

	cmd.Flags().StringVarP(&sf.format, "format", "f", formatText, "output format (text, json, yaml)")
	cmd.Flags().BoolVarP(&sf.regex, "regex", "E", false, "treat the pattern as a regular expression")
	cmd.Flags().Float64Var(&sf.fuzzy, "fuzzy", 0, "fuzzy similarity threshold in (0, 1]; 0 disables")
	cmd.Flags().StringVarP(&sf.author, "author", "a", "", "author name or email filter")
	cmd.Flags().StringVarP(&sf.message, "message", "m", "", "commit message substring filter")
	cmd.Flags().StringVar(&sf.since, "since", "", "only commits after this time")
	cmd.Flags().StringVar(&sf.until, "until", "", "only commits before this time")
	cmd.Flags().StringSliceVarP(&sf.extensions, "ext", "e", nil, "file extension allow-list")
	cmd.Flags().IntVar(&sf.maxResults, "max-results", 0, "maximum results (0 = config default)")
	cmd.Flags().IntVar(&sf.maxCommits, "max-commits", 0, "maximum commits to scan (0 = config default)")
	cmd.Flags().BoolVarP(&sf.showContext, "context", "C", false, "show surrounding lines for each match")
	cmd.Flags().IntVar(&sf.contextLines, "context-lines", 0, "context lines either side of a match (0 = config default)")
	cmd.Flags().DurationVar(&sf.timeout, "timeout", 0, "abort the search after this duration (0 = config default)")

	return cmd
}

func runSearch(cobraCmd *cobra.Command, args []string, app *App, sf *searchFlags) error {
	repoPath, err := resolveRepoPath(args, 1)
	if err != nil {
		return err
	}

	query, err := buildQuery(app, sf, args[0])
	if err != nil {
		return err
	}

	analyzer, err := analysis.Open(repoPath, app.Logger())
	if err != nil {
		return err
	}
	defer analyzer.Close()

	engine := search.NewEngine(nil, nil, app.Logger())

	outcome, err := engine.Run(cobraCmd.Context(), analyzer, query)
	if err != nil {
		return err
	}

	return renderOutcome(cobraCmd.OutOrStdout(), outcome, sf)
}

// buildQuery merges flags with the configured search defaults.
func buildQuery(app *App, sf *searchFlags, pattern string) (search.Query, error) {
	since, err := parseTimeFlag(sf.since)
	if err != nil {
		return search.Query{}, err
	}

	until, err := parseTimeFlag(sf.until)
	if err != nil {
		return search.Query{}, err
	}

	cfg := app.Config().Search

	maxResults := sf.maxResults
	if maxResults <= 0 {
		maxResults = cfg.MaxResults
	}

	maxCommits := sf.maxCommits
	if maxCommits <= 0 {
		maxCommits = cfg.MaxCommits
	}

	contextLines := sf.contextLines
	if contextLines <= 0 {
		contextLines = cfg.ContextLines
	}

	timeout := sf.timeout
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}

	return search.Query{
		ContentPattern: pattern,
		UseRegex:       sf.regex,
		FuzzyThreshold: sf.fuzzy,
		AuthorPattern:  sf.author,
		MessagePattern: sf.message,
		Since:          since,
		Until:          until,
		FileExtensions: sf.extensions,
		MaxResults:     maxResults,
		MaxCommits:     maxCommits,
		IncludeContext: sf.showContext,
		ContextLines:   contextLines,
		Timeout:        timeout,
	}, nil
}

func renderOutcome(w io.Writer, outcome *search.Outcome, sf *searchFlags) error {
	switch sf.format {
	case formatJSON:
		return renderJSON(w, outcome)
	case formatYAML:
		return renderYAML(w, outcome)
	case formatText:
		renderOutcomeText(w, outcome, sf.showContext)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, sf.format)
	}
}

func renderOutcomeText(w io.Writer, outcome *search.Outcome, showContext bool) {
	for _, r := range outcome.Results {
		switch r.SearchType {
		case search.TypeCommitMessage, search.TypeAuthor:
			fmt.Fprintf(w, "%s %s\n",
				color.YellowString(shortHash(r.CommitHash)),
				r.MatchingLine)
		default:
			fmt.Fprintf(w, "%s %s:%d: %s\n",
				color.YellowString(shortHash(r.CommitHash)),
				color.CyanString(r.FilePath),
				r.LineNumber,
				r.MatchingLine)
		}

		if showContext {
			for _, line := range r.MatchContext {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	fmt.Fprintf(w, "%d matches in %d commits", outcome.TotalMatches, outcome.CommitsProcessed)

	if outcome.HasMore {
		fmt.Fprintf(w, " (showing first %d)", len(outcome.Results))
	}

	fmt.Fprintln(w)
}
