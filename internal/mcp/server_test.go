package mcp_test

import (
	"context"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githound/githound/internal/mcp"
	"github.com/githound/githound/pkg/gitlib/gittest"
)

var allToolNames = []string{
	"advanced_search",
	"analyze_commit",
	"analyze_repository",
	"fuzzy_search",
	"get_author_stats",
	"get_commit_history",
	"get_file_history",
	"validate_repository",
}

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	require.NotNil(t, srv)

	assert.Equal(t, allToolNames, srv.ListToolNames())
}

// connect starts the server on an in-memory transport and returns a
// connected client session.
func connect(t *testing.T, ctx context.Context, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		<-serverDone
	})

	return session
}

func TestServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := connect(t, ctx, mcp.NewServer(mcp.ServerDeps{}))

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, toolsResult)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
	}

	assert.ElementsMatch(t, allToolNames, toolNames)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s missing description", tool.Name)
	}
}

func TestServer_InMemoryTransport_CallValidateRepository(t *testing.T) {
	t.Parallel()

	repo := gittest.New(t)
	repo.CreateFile("README.md", "# fixture\n")
	repo.Commit("initial commit")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := connect(t, ctx, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: "validate_repository",
		Arguments: map[string]any{
			"repo_path": repo.Path,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	assert.NotEmpty(t, result.Content)
}

func TestServer_InMemoryTransport_CallAdvancedSearch(t *testing.T) {
	t.Parallel()

	repo := gittest.New(t)
	repo.CreateFile("main.go", "package main\n\nfunc main() {}\n")
	repo.Commit("initial commit")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := connect(t, ctx, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: "advanced_search",
		Arguments: map[string]any{
			"repo_path":       repo.Path,
			"content_pattern": "func main",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	assert.NotEmpty(t, result.Content)
}

func TestServer_InMemoryTransport_CallErrorPath(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := connect(t, ctx, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: "analyze_repository",
		Arguments: map[string]any{
			"repo_path": "relative/path",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}
