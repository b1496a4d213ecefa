package commands

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/analysis"
)

const statsPlotPerm = 0o644

// NewStatsCommand creates the stats command.
func NewStatsCommand(app *App) *cobra.Command {
	var (
		format     string
		branch     string
		limit      int
		plotOutput string
	)

	cmd := &cobra.Command{
		Use:   "stats [repository]",
		Short: "Show per-author contribution statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			repoPath, err := resolveRepoPath(args, 0)
			if err != nil {
				return err
			}

			if limit <= 0 {
				limit = app.Config().Analysis.HistoryLimit
			}

			analyzer, err := analysis.Open(repoPath, app.Logger())
			if err != nil {
				return err
			}
			defer analyzer.Close()

			stats, err := analyzer.AuthorStatistics(cobraCmd.Context(), analysis.Filter{
				Branch:   branch,
				MaxCount: limit,
			})
			if err != nil {
				return err
			}

			if format == formatPlot {
				return renderStatsPlot(stats, plotOutput, cobraCmd.OutOrStdout())
			}

			return renderStats(cobraCmd.OutOrStdout(), stats, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json, yaml, plot)")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to aggregate (default: HEAD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum commits to aggregate (0 = config history limit)")
	cmd.Flags().StringVarP(&plotOutput, "output", "o", "githound-stats.html", "output file for plot format")

	return cmd
}

// sortedAuthors orders the stats by commit count descending, name ascending
// for ties.
func sortedAuthors(stats map[string]*analysis.AuthorStatistics) []*analysis.AuthorStatistics {
	authors := make([]*analysis.AuthorStatistics, 0, len(stats))
	for _, s := range stats {
		authors = append(authors, s)
	}

	sort.Slice(authors, func(i, j int) bool {
		if authors[i].CommitCount != authors[j].CommitCount {
			return authors[i].CommitCount > authors[j].CommitCount
		}

		return authors[i].Name < authors[j].Name
	})

	return authors
}

func renderStats(w io.Writer, stats map[string]*analysis.AuthorStatistics, format string) error {
	switch format {
	case formatJSON:
		return renderJSON(w, stats)
	case formatYAML:
		return renderYAML(w, stats)
	case formatTable:
		renderStatsTable(w, stats)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderStatsTable(w io.Writer, stats map[string]*analysis.AuthorStatistics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Author", "Email", "Commits", "Insertions", "Deletions", "Files"})

	for _, author := range sortedAuthors(stats) {
		t.AppendRow(table.Row{
			author.Name,
			author.Email,
			humanize.Comma(int64(author.CommitCount)),
			humanize.Comma(int64(author.Insertions)),
			humanize.Comma(int64(author.Deletions)),
			humanize.Comma(int64(author.FilesModified)),
		})
	}

	t.Render()
	fmt.Fprintf(w, "%d authors\n", len(stats))
}

// renderStatsPlot writes an HTML page with per-author activity charts.
func renderStatsPlot(stats map[string]*analysis.AuthorStatistics, outputPath string, w io.Writer) error {
	authors := sortedAuthors(stats)

	names := make([]string, 0, len(authors))
	commits := make([]opts.BarData, 0, len(authors))
	insertions := make([]opts.BarData, 0, len(authors))
	deletions := make([]opts.BarData, 0, len(authors))

	for _, author := range authors {
		names = append(names, author.Name)
		commits = append(commits, opts.BarData{Value: author.CommitCount})
		insertions = append(insertions, opts.BarData{Value: author.Insertions})
		deletions = append(deletions, opts.BarData{Value: author.Deletions})
	}

	commitBar := charts.NewBar()
	commitBar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Commits per Author"}),
	)
	commitBar.SetXAxis(names).AddSeries("Commits", commits)

	linesBar := charts.NewBar()
	linesBar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Lines per Author"}),
	)
	linesBar.SetXAxis(names).
		AddSeries("Insertions", insertions).
		AddSeries("Deletions", deletions)

	page := components.NewPage()
	page.AddCharts(commitBar, linesBar)

	f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, statsPlotPerm)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	fmt.Fprintf(w, "wrote %s\n", outputPath)

	return nil
}
