package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/githound/githound/internal/analysis"
)

// CommitHistoryOutput is the result shape of the get_commit_history and
// get_file_history tools.
type CommitHistoryOutput struct {
	Commits []analysis.Commit `json:"commits"`
	Count   int               `json:"count"`
}

// AuthorStatsOutput is the result shape of the get_author_stats tool, keyed
// by author identity.
type AuthorStatsOutput struct {
	Authors map[string]*analysis.AuthorStatistics `json:"authors"`
	Count   int                                   `json:"count"`
}

// CommitDetailsOutput is the result shape of the analyze_commit tool.
type CommitDetailsOutput struct {
	Commit *analysis.Commit      `json:"commit"`
	Files  []analysis.FileChange `json:"files"`
}

// ValidationOutput is the result shape of the validate_repository tool.
type ValidationOutput struct {
	Valid  bool   `json:"valid"`
	Path   string `json:"path"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleAnalyzeRepository(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input AnalyzeRepositoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	analyzer, err := analysis.Open(input.RepoPath, s.log)
	if err != nil {
		return errorResult(err)
	}
	defer analyzer.Close()

	info, err := analyzer.RepositoryInfo(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(info)
}

func (s *Server) handleCommitHistory(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CommitHistoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	maxCount, err := s.clampCount(input.MaxCount)
	if err != nil {
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

	analyzer, err := analysis.Open(input.RepoPath, s.log)
	if err != nil {
		return errorResult(err)
	}
	defer analyzer.Close()

	commits, err := analyzer.Commits(ctx, analysis.Filter{
		Branch:         input.Branch,
		AuthorPattern:  input.AuthorPattern,
		MessagePattern: input.MessagePattern,
		Since:          since,
		Until:          until,
		FilePath:       input.FilePath,
		MaxCount:       maxCount,
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(CommitHistoryOutput{Commits: commits, Count: len(commits)})
}

func (s *Server) handleAuthorStats(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input AuthorStatsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	maxCount, err := s.clampCount(input.MaxCount)
	if err != nil {
		return errorResult(err)
	}

	analyzer, err := analysis.Open(input.RepoPath, s.log)
	if err != nil {
		return errorResult(err)
	}
	defer analyzer.Close()

	stats, err := analyzer.AuthorStatistics(ctx, analysis.Filter{
		Branch:   input.Branch,
		MaxCount: maxCount,
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(AuthorStatsOutput{Authors: stats, Count: len(stats)})
}

func (s *Server) handleFileHistory(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input FileHistoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	if input.FilePath == "" {
		return errorResult(ErrEmptyFilePath)
	}

	maxCount, err := s.clampCount(input.MaxCount)
	if err != nil {
		return errorResult(err)
	}

	analyzer, err := analysis.Open(input.RepoPath, s.log)
	if err != nil {
		return errorResult(err)
	}
	defer analyzer.Close()

	commits, err := analyzer.FileHistory(ctx, input.FilePath, maxCount)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(CommitHistoryOutput{Commits: commits, Count: len(commits)})
}

func (s *Server) handleAnalyzeCommit(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input AnalyzeCommitInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	if input.CommitHash == "" {
		return errorResult(ErrEmptyCommitHash)
	}

	analyzer, err := analysis.Open(input.RepoPath, s.log)
	if err != nil {
		return errorResult(err)
	}
	defer analyzer.Close()

	commit, files, err := analyzer.CommitDetails(ctx, input.CommitHash)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(CommitDetailsOutput{Commit: commit, Files: files})
}

func (s *Server) handleValidateRepository(
	_ context.Context, _ *mcpsdk.CallToolRequest, input ValidateRepositoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.RepoPath == "" {
		return errorResult(ErrEmptyRepoPath)
	}

	// Invalid repositories are a report, not an error: the tool answers the
	// question either way.
	analyzer, err := analysis.Open(input.RepoPath, s.log)
	if err != nil {
		return jsonResult(ValidationOutput{
			Valid:  false,
			Path:   input.RepoPath,
			Reason: err.Error(),
		})
	}
	analyzer.Close()

	return jsonResult(ValidationOutput{Valid: true, Path: input.RepoPath})
}
