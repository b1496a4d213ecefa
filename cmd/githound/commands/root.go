// Package commands implements the githound CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/githound/githound/internal/config"
	"github.com/githound/githound/internal/observability"
	"github.com/githound/githound/pkg/version"
)

// App carries the configuration and logger shared by all subcommands. It is
// populated once by the root command's PersistentPreRunE.
type App struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *slog.Logger
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.log
}

// init loads configuration and builds the logger. Called before every
// subcommand run.
func (a *App) init() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = buildLogger(cfg, a.debug)

	return nil
}

// buildLogger creates the CLI logger from the logging config. Debug mode
// overrides the configured level.
func buildLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)
	if debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.Logging.Format == "json" {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return slog.New(observability.NewTracingHandler(inner, cfg.Observability.ServiceName, observability.ModeCLI))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewRootCommand creates the githound root command with all subcommands.
func NewRootCommand() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "githound",
		Short: "GitHound - Git repository analysis and search",
		Long: `GitHound analyzes Git repositories: commit history, blame, diffs,
author statistics and multi-modal search (exact, regex, fuzzy) across
the full history.

Commands:
  analyze   Repository summary information
  history   Commit history with filters
  blame     Line-by-line authorship of a file
  diff      Compare two commits or branches
  stats     Per-author contribution statistics
  search    Search file content and commit metadata across history
  mcp       Start the MCP server for AI agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cobraCmd *cobra.Command, _ []string) error {
			// The version command works without configuration.
			if cobraCmd.Name() == "version" {
				return nil
			}

			return app.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "path to config file (default: .githound.yaml)")
	rootCmd.PersistentFlags().BoolVar(&app.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(NewAnalyzeCommand(app))
	rootCmd.AddCommand(NewHistoryCommand(app))
	rootCmd.AddCommand(NewBlameCommand(app))
	rootCmd.AddCommand(NewDiffCommand(app))
	rootCmd.AddCommand(NewStatsCommand(app))
	rootCmd.AddCommand(NewSearchCommand(app))
	rootCmd.AddCommand(NewMCPCommand(app))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cobraCmd *cobra.Command, _ []string) {
			fmt.Fprintf(cobraCmd.OutOrStdout(), "githound %s (commit: %s)\n", version.Version, version.GitHash)
		},
	}
}

// resolveRepoPath turns the optional positional repository argument into an
// absolute path, defaulting to the working directory.
func resolveRepoPath(args []string, index int) (string, error) {
	path := "."
	if len(args) > index {
		path = args[index]
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve repository path: %w", err)
	}

	return abs, nil
}
