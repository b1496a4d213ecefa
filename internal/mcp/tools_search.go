package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/githound/githound/internal/analysis"
	"github.com/githound/githound/internal/search"
)

// defaultFuzzyThreshold is the similarity cutoff when the caller does not
// specify one.
const defaultFuzzyThreshold = 0.7

func (s *Server) handleAdvancedSearch(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input AdvancedSearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	since, err := parseDate("date_from", input.DateFrom)
	if err != nil {
		return errorResult(err)
	}

	until, err := parseDate("date_to", input.DateTo)
	if err != nil {
		return errorResult(err)
	}

	query := search.Query{
		ContentPattern: input.ContentPattern,
		UseRegex:       input.UseRegex,
		AuthorPattern:  input.AuthorPattern,
		MessagePattern: input.MessagePattern,
		Since:          since,
		Until:          until,
		FileExtensions: input.FileExtensions,
		MaxResults:     input.MaxResults,
		MaxCommits:     input.MaxCommits,
		IncludeContext: input.IncludeContext,
		ContextLines:   input.ContextLines,
		Timeout:        time.Duration(input.TimeoutSeconds) * time.Second,
	}

	return s.runSearch(ctx, input.RepoPath, query)
}

func (s *Server) handleFuzzySearch(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input FuzzySearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	if input.ContentPattern == "" {
		return errorResult(ErrEmptyPattern)
	}

	threshold := input.FuzzyThreshold
	if threshold == 0 {
		threshold = defaultFuzzyThreshold
	}

	if threshold <= 0 || threshold > 1 {
		return errorResult(ErrInvalidThreshold)
	}

	query := search.Query{
		ContentPattern: input.ContentPattern,
		FuzzyThreshold: threshold,
		FileExtensions: input.FileExtensions,
		MaxResults:     input.MaxResults,
		MaxCommits:     input.MaxCommits,
		IncludeContext: input.IncludeContext,
		ContextLines:   input.ContextLines,
		Timeout:        time.Duration(input.TimeoutSeconds) * time.Second,
	}

	return s.runSearch(ctx, input.RepoPath, query)
}

// runSearch executes a query synchronously against the repository. MCP tool
// calls are request/response, so background execution stays with the API
// surface that can stream progress.
func (s *Server) runSearch(ctx context.Context, repoPath string, query search.Query) (*mcpsdk.CallToolResult, ToolOutput, error) {
	analyzer, err := analysis.Open(repoPath, s.log)
	if err != nil {
		return errorResult(err)
	}
	defer analyzer.Close()

	outcome, err := s.engine.Run(ctx, analyzer, query)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(outcome)
}
