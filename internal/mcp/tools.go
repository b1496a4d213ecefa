package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameAnalyzeRepository  = "analyze_repository"
	ToolNameCommitHistory      = "get_commit_history"
	ToolNameAuthorStats        = "get_author_stats"
	ToolNameFileHistory        = "get_file_history"
	ToolNameAnalyzeCommit      = "analyze_commit"
	ToolNameValidateRepository = "validate_repository"
	ToolNameAdvancedSearch     = "advanced_search"
	ToolNameFuzzySearch        = "fuzzy_search"
)

// Input validation errors.
var (
	// ErrEmptyRepoPath is returned when repo_path is empty.
	ErrEmptyRepoPath = errors.New("repo_path must not be empty")
	// ErrRepoPathNotAbsolute is returned when repo_path is not absolute.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoPathNotFound is returned when repo_path does not exist.
	ErrRepoPathNotFound = errors.New("repo_path does not exist")
	// ErrEmptyFilePath is returned when file_path is empty.
	ErrEmptyFilePath = errors.New("file_path must not be empty")
	// ErrEmptyCommitHash is returned when commit_hash is empty.
	ErrEmptyCommitHash = errors.New("commit_hash must not be empty")
	// ErrEmptyPattern is returned when a fuzzy search has no content pattern.
	ErrEmptyPattern = errors.New("content_pattern must not be empty")
	// ErrMaxCountTooLarge is returned when max_count exceeds the history
	// limit.
	ErrMaxCountTooLarge = errors.New("max_count exceeds the history limit")
	// ErrInvalidDate is returned when a date field cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidThreshold is returned when fuzzy_threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("fuzzy_threshold must be in (0, 1]")
)

// ToolOutput is the structured output attached to every tool response.
type ToolOutput struct {
	Data any `json:"data,omitempty"`
}

// errorResult wraps an error into a CallToolResult with IsError set. The
// handler error itself stays nil so the SDK reports the failure in-band.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult marshals a value into indented JSON text content alongside the
// structured output.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, ToolOutput{}, fmt.Errorf("marshal result: %w", err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}

// validateRepoPath checks that the path is non-empty, absolute and exists.
func validateRepoPath(path string) error {
	if path == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(path) {
		return ErrRepoPathNotAbsolute
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrRepoPathNotFound, path)
	}

	return nil
}

// dateLayouts are the accepted input date formats, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate parses an optional date string. A bare date is interpreted as
// midnight UTC.
func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("%w: %s %q, want RFC3339 or YYYY-MM-DD", ErrInvalidDate, field, value)
}

// clampCount validates max_count against the configured history limit. Zero
// falls back to the limit so unbounded walks stay bounded at the boundary.
func (s *Server) clampCount(count int) (int, error) {
	if count > s.historyLimit {
		return 0, fmt.Errorf("%w: %d > %d", ErrMaxCountTooLarge, count, s.historyLimit)
	}

	if count <= 0 {
		return s.historyLimit, nil
	}

	return count, nil
}

// AnalyzeRepositoryInput is the input for the analyze_repository tool.
type AnalyzeRepositoryInput struct {
	RepoPath string `json:"repo_path" jsonschema:"absolute path to the Git repository"`
}

// CommitHistoryInput is the input for the get_commit_history tool.
type CommitHistoryInput struct {
	RepoPath       string `json:"repo_path" jsonschema:"absolute path to the Git repository"`
	Branch         string `json:"branch,omitempty" jsonschema:"branch to walk, defaults to HEAD"`
	AuthorPattern  string `json:"author_pattern,omitempty" jsonschema:"author name or email filter, substring or glob"`
	MessagePattern string `json:"message_pattern,omitempty" jsonschema:"case-insensitive substring filter on the commit message"`
	DateFrom       string `json:"date_from,omitempty" jsonschema:"inclusive lower bound on commit date, RFC3339 or YYYY-MM-DD"`
	DateTo         string `json:"date_to,omitempty" jsonschema:"inclusive upper bound on commit date, RFC3339 or YYYY-MM-DD"`
	FilePath       string `json:"file_path,omitempty" jsonschema:"restrict to commits touching this path"`
	MaxCount       int    `json:"max_count,omitempty" jsonschema:"maximum commits to return, capped at 10000"`
}

// AuthorStatsInput is the input for the get_author_stats tool.
type AuthorStatsInput struct {
	RepoPath string `json:"repo_path" jsonschema:"absolute path to the Git repository"`
	Branch   string `json:"branch,omitempty" jsonschema:"branch to aggregate, defaults to HEAD"`
	MaxCount int    `json:"max_count,omitempty" jsonschema:"maximum commits to aggregate, capped at 10000"`
}

// FileHistoryInput is the input for the get_file_history tool.
type FileHistoryInput struct {
	RepoPath string `json:"repo_path" jsonschema:"absolute path to the Git repository"`
	FilePath string `json:"file_path" jsonschema:"repository-relative path of the file"`
	MaxCount int    `json:"max_count,omitempty" jsonschema:"maximum commits to return, capped at 10000"`
}

// AnalyzeCommitInput is the input for the analyze_commit tool.
type AnalyzeCommitInput struct {
	RepoPath   string `json:"repo_path" jsonschema:"absolute path to the Git repository"`
	CommitHash string `json:"commit_hash" jsonschema:"commit hash or revision expression"`
}

// ValidateRepositoryInput is the input for the validate_repository tool.
type ValidateRepositoryInput struct {
	RepoPath string `json:"repo_path" jsonschema:"path to check"`
}

// AdvancedSearchInput is the input for the advanced_search tool.
type AdvancedSearchInput struct {
	RepoPath       string   `json:"repo_path" jsonschema:"absolute path to the Git repository"`
	ContentPattern string   `json:"content_pattern,omitempty" jsonschema:"text to find in file content"`
	UseRegex       bool     `json:"use_regex,omitempty" jsonschema:"treat content_pattern as a regular expression"`
	AuthorPattern  string   `json:"author_pattern,omitempty" jsonschema:"author name or email filter, substring or glob"`
	MessagePattern string   `json:"message_pattern,omitempty" jsonschema:"case-insensitive substring filter on the commit message"`
	DateFrom       string   `json:"date_from,omitempty" jsonschema:"inclusive lower bound on commit date, RFC3339 or YYYY-MM-DD"`
	DateTo         string   `json:"date_to,omitempty" jsonschema:"inclusive upper bound on commit date, RFC3339 or YYYY-MM-DD"`
	FileExtensions []string `json:"file_extensions,omitempty" jsonschema:"allow-list of file extensions, with or without the leading dot"`
	MaxResults     int      `json:"max_results,omitempty" jsonschema:"maximum results to return, 0 means unlimited"`
	MaxCommits     int      `json:"max_commits,omitempty" jsonschema:"maximum commits to scan, 0 means all"`
	IncludeContext bool     `json:"include_context,omitempty" jsonschema:"attach surrounding lines to each match"`
	ContextLines   int      `json:"context_lines,omitempty" jsonschema:"lines of context either side of a match, defaults to 3"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" jsonschema:"fail the search after this many seconds, 0 means no timeout"`
}

// FuzzySearchInput is the input for the fuzzy_search tool.
type FuzzySearchInput struct {
	RepoPath       string   `json:"repo_path" jsonschema:"absolute path to the Git repository"`
	ContentPattern string   `json:"content_pattern" jsonschema:"text to find, matched tolerantly"`
	FuzzyThreshold float64  `json:"fuzzy_threshold,omitempty" jsonschema:"minimum normalized similarity in (0, 1], defaults to 0.7"`
	FileExtensions []string `json:"file_extensions,omitempty" jsonschema:"allow-list of file extensions, with or without the leading dot"`
	MaxResults     int      `json:"max_results,omitempty" jsonschema:"maximum results to return, 0 means unlimited"`
	MaxCommits     int      `json:"max_commits,omitempty" jsonschema:"maximum commits to scan, 0 means all"`
	IncludeContext bool     `json:"include_context,omitempty" jsonschema:"attach surrounding lines to each match"`
	ContextLines   int      `json:"context_lines,omitempty" jsonschema:"lines of context either side of a match, defaults to 3"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" jsonschema:"fail the search after this many seconds, 0 means no timeout"`
}
