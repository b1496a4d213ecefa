// Package mcp implements a Model Context Protocol server exposing GitHound
// repository analysis and search as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/githound/githound/internal/config"
	"github.com/githound/githound/internal/observability"
	"github.com/githound/githound/internal/ops"
	"github.com/githound/githound/internal/search"
	"github.com/githound/githound/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "githound"

	// toolCount is the expected number of registered tools.
	toolCount = 8
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool
	// metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil
	// disables tracing.
	Tracer trace.Tracer

	// HistoryLimit caps max_count on history tools. Zero uses the default.
	HistoryLimit int

	// Retention is how long finished search operations stay queryable.
	// Zero uses the default.
	Retention time.Duration

	// JanitorInterval is how often expired operations are evicted. Zero
	// uses the default.
	JanitorInterval time.Duration
}

// Server wraps the MCP SDK server with GitHound tool registrations.
type Server struct {
	inner           *mcpsdk.Server
	log             *slog.Logger
	engine          *search.Engine
	registry        *ops.Registry
	historyLimit    int
	retention       time.Duration
	janitorInterval time.Duration
	metrics         *observability.REDMetrics
	tracer          trace.Tracer

	mu    sync.RWMutex
	tools []string
}

// NewServer creates a new MCP server with all GitHound tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = config.DefaultHistoryLimit
	}

	retention := deps.Retention
	if retention <= 0 {
		retention = config.DefaultOperationRetention
	}

	janitorInterval := deps.JanitorInterval
	if janitorInterval <= 0 {
		janitorInterval = config.DefaultJanitorInterval
	}

	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	registry := ops.NewRegistry(ops.NewMemoryStore())

	srv := &Server{
		inner:           inner,
		log:             logger,
		engine:          search.NewEngine(registry, ops.NopPublisher{}, logger),
		registry:        registry,
		historyLimit:    historyLimit,
		retention:       retention,
		janitorInterval: janitorInterval,
		metrics:         deps.Metrics,
		tracer:          deps.Tracer,
		tools:           make([]string, 0, toolCount),
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes. A janitor evicts
// finished search operations past their retention for the server lifetime.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()

	go ops.RunJanitor(janitorCtx, s.registry.Store(), s.retention, s.janitorInterval, s.engine.Evict)

	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all GitHound MCP tools to the server.
func (s *Server) registerTools() {
	register(s, ToolNameAnalyzeRepository, analyzeRepositoryDescription, s.handleAnalyzeRepository)
	register(s, ToolNameCommitHistory, commitHistoryDescription, s.handleCommitHistory)
	register(s, ToolNameAuthorStats, authorStatsDescription, s.handleAuthorStats)
	register(s, ToolNameFileHistory, fileHistoryDescription, s.handleFileHistory)
	register(s, ToolNameAnalyzeCommit, analyzeCommitDescription, s.handleAnalyzeCommit)
	register(s, ToolNameValidateRepository, validateRepositoryDescription, s.handleValidateRepository)
	register(s, ToolNameAdvancedSearch, advancedSearchDescription, s.handleAdvancedSearch)
	register(s, ToolNameFuzzySearch, fuzzySearchDescription, s.handleFuzzySearch)
}

// register wires one tool through the metrics and tracing middleware.
func register[Input any](
	s *Server,
	name, description string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, withMetrics(s.metrics, name, withTracing(s.tracer, name, handler)))

	s.trackTool(name)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per
// invocation and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per
// invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

// Tool description constants.
const (
	analyzeRepositoryDescription = "Analyze a Git repository and return summary information: " +
		"total commits, files, authors, branches, tags and first/last commit dates."

	commitHistoryDescription = "Retrieve commit history with optional filters: " +
		"branch, author pattern (substring or glob), message pattern, date range, " +
		"file path and a maximum count."

	authorStatsDescription = "Aggregate per-author contribution statistics: " +
		"commit count, insertions, deletions, distinct files modified and language breakdown."

	fileHistoryDescription = "List the commits that touched a specific file, newest first."

	analyzeCommitDescription = "Inspect a single commit: metadata, per-file changes " +
		"with insertion/deletion counts and change classification."

	validateRepositoryDescription = "Check whether a path is an accessible Git repository."

	advancedSearchDescription = "Search repository history for content (exact or regex), " +
		"commit messages or authors, with date bounds, file extension filters, " +
		"context lines and result caps."

	fuzzySearchDescription = "Fuzzy content search tolerant of typos, ranked by " +
		"normalized Levenshtein similarity against a threshold."
)
