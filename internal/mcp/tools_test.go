package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githound/githound/internal/analysis"
	"github.com/githound/githound/internal/search"
	"github.com/githound/githound/pkg/gitlib/gittest"
)

// fixtureRepo builds a small repository with three commits by two authors.
func fixtureRepo(t *testing.T) *gittest.Repo {
	t.Helper()

	repo := gittest.New(t)

	repo.CreateFile("main.go", "package main\n\nfunc main() {\n\tprintGreeting()\n}\n")
	repo.Commit("initial commit")

	repo.CreateFile("greet.go", "package main\n\nimport \"fmt\"\n\nfunc printGreeting() {\n\tfmt.Println(\"hello world\")\n}\n")
	repo.CommitAs("Alice", "alice@example.com", "add greeting helper")

	repo.CreateFile("notes.txt", "hello world\n")
	repo.Commit("add notes")

	return repo
}

func testServer(t *testing.T) *Server {
	t.Helper()

	return NewServer(ServerDeps{})
}

func resultText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestValidateRepoPath(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		path    string
		wantErr error
	}{
		"empty":        {path: "", wantErr: ErrEmptyRepoPath},
		"relative":     {path: "relative/path", wantErr: ErrRepoPathNotAbsolute},
		"non existent": {path: "/nonexistent/path/to/repo", wantErr: ErrRepoPathNotFound},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := validateRepoPath(tc.path)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestHandleAnalyzeRepository_InvalidPath(t *testing.T) {
	t.Parallel()

	srv := testServer(t)

	result, _, err := srv.handleAnalyzeRepository(context.Background(), &mcpsdk.CallToolRequest{},
		AnalyzeRepositoryInput{RepoPath: "relative/path"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "absolute path")
}

func TestHandleAnalyzeRepository_NotARepository(t *testing.T) {
	t.Parallel()

	srv := testServer(t)

	result, _, err := srv.handleAnalyzeRepository(context.Background(), &mcpsdk.CallToolRequest{},
		AnalyzeRepositoryInput{RepoPath: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAnalyzeRepository_ValidRepo(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleAnalyzeRepository(context.Background(), &mcpsdk.CallToolRequest{},
		AnalyzeRepositoryInput{RepoPath: repo.Path})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	info, ok := output.Data.(*analysis.RepositoryInfo)
	require.True(t, ok)
	assert.Equal(t, 3, info.TotalCommits)
	assert.Equal(t, 2, info.TotalAuthors)
	assert.Equal(t, 3, info.TotalFiles)
}

func TestHandleCommitHistory_Filters(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleCommitHistory(context.Background(), &mcpsdk.CallToolRequest{},
		CommitHistoryInput{RepoPath: repo.Path, AuthorPattern: "alice@*"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	history, ok := output.Data.(CommitHistoryOutput)
	require.True(t, ok)
	require.Equal(t, 1, history.Count)
	assert.Equal(t, "add greeting helper", history.Commits[0].Message)
}

func TestHandleCommitHistory_MaxCountTooLarge(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleCommitHistory(context.Background(), &mcpsdk.CallToolRequest{},
		CommitHistoryInput{RepoPath: repo.Path, MaxCount: srv.historyLimit + 1})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "history limit")
}

func TestHandleCommitHistory_InvalidDate(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleCommitHistory(context.Background(), &mcpsdk.CallToolRequest{},
		CommitHistoryInput{RepoPath: repo.Path, DateFrom: "yesterday"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid date")
}

func TestHandleCommitHistory_DateRange(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	// Fixture commits start at 2024-01-01, one minute apart.
	result, output, err := srv.handleCommitHistory(context.Background(), &mcpsdk.CallToolRequest{},
		CommitHistoryInput{RepoPath: repo.Path, DateFrom: "2024-01-01", DateTo: "2024-01-02"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	history, ok := output.Data.(CommitHistoryOutput)
	require.True(t, ok)
	assert.Equal(t, 3, history.Count)
}

func TestHandleAuthorStats(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleAuthorStats(context.Background(), &mcpsdk.CallToolRequest{},
		AuthorStatsInput{RepoPath: repo.Path})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	stats, ok := output.Data.(AuthorStatsOutput)
	require.True(t, ok)
	require.Equal(t, 2, stats.Count)
	require.Contains(t, stats.Authors, "alice@example.com")
	assert.Equal(t, 1, stats.Authors["alice@example.com"].CommitCount)
}

func TestHandleFileHistory(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleFileHistory(context.Background(), &mcpsdk.CallToolRequest{},
		FileHistoryInput{RepoPath: repo.Path, FilePath: "greet.go"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	history, ok := output.Data.(CommitHistoryOutput)
	require.True(t, ok)
	require.Equal(t, 1, history.Count)
	assert.Equal(t, "add greeting helper", history.Commits[0].Message)
}

func TestHandleFileHistory_EmptyFilePath(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleFileHistory(context.Background(), &mcpsdk.CallToolRequest{},
		FileHistoryInput{RepoPath: repo.Path})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "file_path")
}

func TestHandleAnalyzeCommit(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleAnalyzeCommit(context.Background(), &mcpsdk.CallToolRequest{},
		AnalyzeCommitInput{RepoPath: repo.Path, CommitHash: "HEAD"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	details, ok := output.Data.(CommitDetailsOutput)
	require.True(t, ok)
	require.NotNil(t, details.Commit)
	assert.Equal(t, "add notes", details.Commit.Message)
	require.Len(t, details.Files, 1)
	assert.Equal(t, "notes.txt", details.Files[0].FilePath)
}

func TestHandleAnalyzeCommit_EmptyHash(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleAnalyzeCommit(context.Background(), &mcpsdk.CallToolRequest{},
		AnalyzeCommitInput{RepoPath: repo.Path})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "commit_hash")
}

func TestHandleAnalyzeCommit_BadRevision(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleAnalyzeCommit(context.Background(), &mcpsdk.CallToolRequest{},
		AnalyzeCommitInput{RepoPath: repo.Path, CommitHash: "no-such-revision"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleValidateRepository(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	cases := map[string]struct {
		path      string
		wantValid bool
	}{
		"valid repository": {path: repo.Path, wantValid: true},
		"plain directory":  {path: t.TempDir(), wantValid: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result, output, err := srv.handleValidateRepository(context.Background(), &mcpsdk.CallToolRequest{},
				ValidateRepositoryInput{RepoPath: tc.path})
			require.NoError(t, err)
			assert.False(t, result.IsError)

			validation, ok := output.Data.(ValidationOutput)
			require.True(t, ok)
			assert.Equal(t, tc.wantValid, validation.Valid)
			assert.Equal(t, tc.path, validation.Path)

			if !tc.wantValid {
				assert.NotEmpty(t, validation.Reason)
			}
		})
	}
}

func TestHandleValidateRepository_EmptyPath(t *testing.T) {
	t.Parallel()

	srv := testServer(t)

	result, _, err := srv.handleValidateRepository(context.Background(), &mcpsdk.CallToolRequest{},
		ValidateRepositoryInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAdvancedSearch_ExactContent(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleAdvancedSearch(context.Background(), &mcpsdk.CallToolRequest{},
		AdvancedSearchInput{RepoPath: repo.Path, ContentPattern: "hello world"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	outcome, ok := output.Data.(*search.Outcome)
	require.True(t, ok)
	assert.Equal(t, 3, outcome.CommitsProcessed)
	require.NotEmpty(t, outcome.Results)

	// The JSON text content carries the same payload.
	var decoded search.Outcome

	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Equal(t, outcome.TotalMatches, decoded.TotalMatches)
}

func TestHandleAdvancedSearch_BadRegex(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleAdvancedSearch(context.Background(), &mcpsdk.CallToolRequest{},
		AdvancedSearchInput{RepoPath: repo.Path, ContentPattern: "[unclosed", UseRegex: true})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid query")
}

func TestHandleAdvancedSearch_NoPattern(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleAdvancedSearch(context.Background(), &mcpsdk.CallToolRequest{},
		AdvancedSearchInput{RepoPath: repo.Path})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleFuzzySearch_TypoMatches(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, output, err := srv.handleFuzzySearch(context.Background(), &mcpsdk.CallToolRequest{},
		FuzzySearchInput{RepoPath: repo.Path, ContentPattern: "printGreting", FuzzyThreshold: 0.75})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	outcome, ok := output.Data.(*search.Outcome)
	require.True(t, ok)
	require.NotEmpty(t, outcome.Results)

	for _, r := range outcome.Results {
		assert.Equal(t, search.TypeFuzzy, r.SearchType)
	}
}

func TestHandleFuzzySearch_EmptyPattern(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleFuzzySearch(context.Background(), &mcpsdk.CallToolRequest{},
		FuzzySearchInput{RepoPath: repo.Path})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "content_pattern")
}

func TestHandleFuzzySearch_InvalidThreshold(t *testing.T) {
	t.Parallel()

	repo := fixtureRepo(t)
	srv := testServer(t)

	result, _, err := srv.handleFuzzySearch(context.Background(), &mcpsdk.CallToolRequest{},
		FuzzySearchInput{RepoPath: repo.Path, ContentPattern: "hello", FuzzyThreshold: 1.5})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "fuzzy_threshold")
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := parseDate("date_from", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())

	got, err = parseDate("date_from", "2024-03-01T12:30:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12, got.Hour())

	got, err = parseDate("date_from", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("date_from", "bogus")
	require.ErrorIs(t, err, ErrInvalidDate)
}
