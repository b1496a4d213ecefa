package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/githound/githound/internal/config"
	"github.com/githound/githound/internal/mcp"
	"github.com/githound/githound/internal/observability"
	"github.com/githound/githound/pkg/version"
)

const metricsReadHeaderTimeout = 5 * time.Second

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes GitHound analysis capabilities as tools that AI
agents can discover and invoke: repository analysis, commit history,
author statistics, file history, commit inspection, repository
validation and advanced/fuzzy search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runMCP(cobraCmd.Context(), app)
		},
	}
}

func runMCP(ctx context.Context, app *App) error {
	cfg := app.Config()

	providers, err := observability.Init(mcpObservabilityConfig(cfg, app.debug))
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	meter := providers.Meter

	if cfg.Observability.MetricsEnabled {
		scrapeMeter, metricsErr := startMetricsServer(ctx, cfg.Observability.MetricsAddr, providers.Logger)
		if metricsErr != nil {
			return metricsErr
		}

		meter = scrapeMeter
	}

	red, redErr := observability.NewREDMetrics(meter)
	if redErr != nil {
		return redErr
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Logger:          providers.Logger,
		Metrics:         red,
		Tracer:          providers.Tracer,
		HistoryLimit:    cfg.Analysis.HistoryLimit,
		Retention:       cfg.Operations.Retention,
		JanitorInterval: cfg.Operations.JanitorInterval,
	})

	return srv.Run(ctx)
}

// mcpObservabilityConfig builds the MCP observability config. Logs are JSON
// on stderr so stdout stays protocol-clean.
func mcpObservabilityConfig(cfg *config.Config, debug bool) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Observability.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeMCP
	obsCfg.LogJSON = true

	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		obsCfg.OTLPEndpoint = endpoint
	}

	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
	}

	return obsCfg
}

// startMetricsServer serves Prometheus metrics on addr and returns the meter
// that feeds the scrape endpoint.
func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) (metric.Meter, error) {
	handler, provider, err := observability.PrometheusHandler()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		logger.Info("metrics server listening", slog.String("addr", addr))

		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	go func() {
		<-ctx.Done()

		_ = server.Close()
	}()

	return provider.Meter("githound"), nil
}
