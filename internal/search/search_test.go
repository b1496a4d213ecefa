package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githound/githound/internal/analysis"
	"github.com/githound/githound/internal/ops"
	"github.com/githound/githound/pkg/gitlib/gittest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// searchFixture builds a three-commit repository. The phrase "hello world"
// appears in greet.go, notes.txt and script.py; draft.txt carries the typo
// "helo world" for fuzzy matching.
func searchFixture(t *testing.T) (*gittest.Repo, *analysis.Analyzer) {
	t.Helper()

	repo := gittest.New(t)

	repo.CreateFile("main.go", "package main\n\nfunc main() {\n\tprintGreeting()\n}\n")
	repo.Commit("initial layout")

	repo.CreateFile("greet.go", "package main\n\nimport \"fmt\"\n\nfunc printGreeting() {\n\tfmt.Println(\"hello world\")\n}\n")
	repo.CommitAs("Alice", "alice@example.com", "add greeting helper")

	repo.CreateFile("notes.txt", "hello world\n")
	repo.CreateFile("script.py", "print('hello world')\n")
	repo.CreateFile("draft.txt", "helo world\n")
	repo.Commit("add notes and script")

	analyzer, err := analysis.Open(repo.Path, testLogger())
	require.NoError(t, err)

	t.Cleanup(analyzer.Close)

	return repo, analyzer
}

func newTestEngine(publisher ops.Publisher) *Engine {
	return NewEngine(ops.NewRegistry(ops.NewMemoryStore()), publisher, testLogger())
}

func TestRunExactContent(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{ContentPattern: "hello world"})
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.TotalMatches)
	assert.Len(t, outcome.Results, 4)
	assert.False(t, outcome.HasMore)
	assert.Equal(t, 3, outcome.CommitsProcessed)

	types := map[SearchType]int{}
	for _, r := range outcome.Results {
		types[r.SearchType]++
		assert.Equal(t, 1.0, r.RelevanceScore)
	}

	// Three matches in the newest tree, one in the older commit that
	// introduced greet.go.
	assert.Equal(t, 3, types[TypeContent])
	assert.Equal(t, 1, types[TypeHistorical])
}

func TestRunResultCap(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		MaxResults:     2,
	})
	require.NoError(t, err)

	assert.Len(t, outcome.Results, 2)
	assert.Equal(t, 4, outcome.TotalMatches)
	assert.True(t, outcome.HasMore)
}

func TestRunExtensionFilter(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		FileExtensions: []string{"go"},
	})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)

	for _, r := range outcome.Results {
		assert.Equal(t, "greet.go", r.FilePath)
	}
}

func TestRunMaxCommits(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		MaxCommits:     1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.CommitsProcessed)
	assert.Equal(t, 3, outcome.TotalMatches)

	for _, r := range outcome.Results {
		assert.Equal(t, TypeContent, r.SearchType)
	}
}

func TestRunRegex(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: `hello\s+world`,
		UseRegex:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.TotalMatches)
}

func TestRunInvalidQueries(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	cases := map[string]Query{
		"no pattern":        {},
		"bad regex":         {ContentPattern: "[", UseRegex: true},
		"threshold too big": {ContentPattern: "x", FuzzyThreshold: 1.5},
		"negative limit":    {ContentPattern: "x", MaxResults: -1},
		"negative timeout":  {ContentPattern: "x", Timeout: -time.Second},
	}

	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Run(context.Background(), analyzer, q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestRunFuzzyTypo(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "printGreting",
		FuzzyThreshold: 0.75,
	})
	require.NoError(t, err)

	require.NotEmpty(t, outcome.Results)

	for _, r := range outcome.Results {
		assert.Equal(t, TypeFuzzy, r.SearchType)
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.75)
		assert.Less(t, r.RelevanceScore, 1.0)
		assert.Contains(t, r.MatchingLine, "printGreeting")
	}
}

func TestRunFuzzyExactScoresOne(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		FuzzyThreshold: 0.9,
	})
	require.NoError(t, err)

	require.NotEmpty(t, outcome.Results)

	for _, r := range outcome.Results {
		assert.Equal(t, 1.0, r.RelevanceScore)
		assert.Equal(t, TypeFuzzy, r.SearchType)
	}
}

func TestRunOrderingByRelevance(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		FuzzyThreshold: 0.6,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 5)

	for i := 1; i < len(outcome.Results); i++ {
		assert.GreaterOrEqual(t,
			outcome.Results[i-1].RelevanceScore,
			outcome.Results[i].RelevanceScore)
	}

	last := outcome.Results[len(outcome.Results)-1]
	assert.Equal(t, "draft.txt", last.FilePath)
	assert.InDelta(t, 0.909, last.RelevanceScore, 0.01)
}

func TestRunCommitMessageSearch(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{MessagePattern: "greeting"})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, TypeCommitMessage, outcome.Results[0].SearchType)
	assert.Equal(t, "add greeting helper", outcome.Results[0].MatchingLine)
	assert.Empty(t, outcome.Results[0].FilePath)
}

func TestRunAuthorSearch(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{AuthorPattern: "alice@*"})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, TypeAuthor, outcome.Results[0].SearchType)
	assert.Equal(t, "Alice <alice@example.com>", outcome.Results[0].MatchingLine)
}

func TestRunMatchContext(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	outcome, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "fmt.Println",
		FileExtensions: []string{".go"},
		IncludeContext: true,
		ContextLines:   1,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)

	newest := outcome.Results[0]
	assert.Equal(t, "greet.go", newest.FilePath)
	assert.Equal(t, 6, newest.LineNumber)
	require.Len(t, newest.MatchContext, 3)
	assert.Contains(t, newest.MatchContext[1], "fmt.Println")
}

func TestRunTimeout(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	_, err := engine.Run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		Timeout:        time.Nanosecond,
	})

	assert.ErrorIs(t, err, ErrSearchTimeout)
}

func TestRunCancelledKeepsPartial(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	op, err := engine.registry.Create("alice")
	require.NoError(t, err)
	require.True(t, op.Start())
	require.True(t, op.Cancel())

	outcome, runErr := engine.run(context.Background(), analyzer, Query{ContentPattern: "hello world"}, op)

	assert.ErrorIs(t, runErr, ErrCancelled)
	require.NotNil(t, outcome)
	assert.Equal(t, 0, outcome.CommitsProcessed)
	assert.Empty(t, outcome.Results)
}

func waitTerminal(t *testing.T, engine *Engine, id, userID string) ops.Snapshot {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		snap, err := engine.Status(id, userID)
		require.NoError(t, err)

		if snap.Status.Terminal() {
			return snap
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("operation never reached a terminal state")

	return ops.Snapshot{}
}

func TestStartBackgroundCompletes(t *testing.T) {
	repo, _ := searchFixture(t)

	publisher := ops.NewChannelPublisher()
	events, unsubscribe := publisher.Subscribe()
	defer unsubscribe()

	engine := newTestEngine(publisher)

	snap, err := engine.Start(repo.Path, Query{ContentPattern: "hello world"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, ops.StatusPending, snap.Status)

	final := waitTerminal(t, engine, snap.ID, "alice")
	assert.Equal(t, ops.StatusCompleted, final.Status)
	assert.Equal(t, 1.0, final.Progress)
	assert.Equal(t, 4, final.ResultsCount)
	require.NotNil(t, final.CompletedAt)

	outcome, err := engine.Results(snap.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, outcome.TotalMatches)

	var (
		sawProgress, sawCompleted bool
		resultEvents              int
	)

	timeout := time.After(5 * time.Second)

	for !sawCompleted {
		select {
		case event := <-events:
			switch event.Type {
			case ops.EventProgress:
				sawProgress = true
			case ops.EventResult:
				resultEvents++

				assert.Equal(t, snap.ID, event.SearchID)
				require.NotNil(t, event.Result)
				assert.IsType(t, Result{}, event.Result)
			case ops.EventCompleted:
				sawCompleted = true

				assert.Equal(t, snap.ID, event.SearchID)
				assert.Equal(t, ops.StatusCompleted, event.Status)
				assert.Equal(t, 4, event.TotalResults)
			}
		case <-timeout:
			t.Fatal("completion event never arrived")
		}
	}

	assert.True(t, sawProgress)

	// One result event per match, pushed as matches are found.
	assert.Equal(t, 4, resultEvents)
}

func TestStartBackgroundOwnership(t *testing.T) {
	repo, _ := searchFixture(t)
	engine := newTestEngine(nil)

	snap, err := engine.Start(repo.Path, Query{ContentPattern: "hello world"}, "alice")
	require.NoError(t, err)

	waitTerminal(t, engine, snap.ID, "alice")

	_, err = engine.Status(snap.ID, "bob")
	assert.ErrorIs(t, err, ops.ErrForbidden)

	_, err = engine.Results(snap.ID, "bob")
	assert.ErrorIs(t, err, ops.ErrForbidden)

	_, err = engine.Results("no-such-id", "alice")
	assert.ErrorIs(t, err, ops.ErrOperationNotFound)
}

func TestStartBackgroundBadRepository(t *testing.T) {
	engine := newTestEngine(nil)

	snap, err := engine.Start(t.TempDir(), Query{ContentPattern: "x"}, "alice")
	require.NoError(t, err)

	final := waitTerminal(t, engine, snap.ID, "alice")
	assert.Equal(t, ops.StatusFailed, final.Status)
	assert.NotEmpty(t, final.Message)
}

func TestStartInvalidQuery(t *testing.T) {
	engine := newTestEngine(nil)

	_, err := engine.Start(t.TempDir(), Query{}, "alice")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestRunFilteredProgressReachesOne(t *testing.T) {
	_, analyzer := searchFixture(t)
	engine := newTestEngine(nil)

	op, err := engine.registry.Create("alice")
	require.NoError(t, err)
	require.True(t, op.Start())

	// Only one of the three commits passes the author filter; the progress
	// denominator must count against that one commit, not the full history.
	_, runErr := engine.run(context.Background(), analyzer, Query{
		ContentPattern: "hello world",
		AuthorPattern:  "alice@*",
	}, op)
	require.NoError(t, runErr)

	snap := op.Snapshot()
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, "processed 1 of 1 commits", snap.Message)
}

func TestEvictDropsStoredOutcome(t *testing.T) {
	repo, _ := searchFixture(t)
	engine := newTestEngine(nil)

	snap, err := engine.Start(repo.Path, Query{ContentPattern: "hello world"}, "alice")
	require.NoError(t, err)

	waitTerminal(t, engine, snap.ID, "alice")

	outcome, err := engine.Results(snap.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, 4, outcome.TotalMatches)

	engine.Evict(snap.ID)

	engine.mu.Lock()
	_, stored := engine.outcomes[snap.ID]
	engine.mu.Unlock()
	assert.False(t, stored)

	// The operation snapshot is still in the registry here, so Results
	// degrades to an empty outcome rather than an error.
	outcome, err = engine.Results(snap.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, outcome.Results)
}

func TestJanitorEvictsOutcomeWithOperation(t *testing.T) {
	repo, _ := searchFixture(t)

	store := ops.NewMemoryStore()
	engine := NewEngine(ops.NewRegistry(store), nil, testLogger())

	snap, err := engine.Start(repo.Path, Query{ContentPattern: "hello world"}, "alice")
	require.NoError(t, err)

	waitTerminal(t, engine, snap.ID, "alice")

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()

	go ops.RunJanitor(janitorCtx, store, 0, time.Millisecond, engine.Evict)

	deadline := time.Now().Add(5 * time.Second)

	// Snapshot and outcome leave memory in the same pass.
	for time.Now().Before(deadline) {
		_, statusErr := engine.Status(snap.ID, "alice")

		engine.mu.Lock()
		_, stored := engine.outcomes[snap.ID]
		engine.mu.Unlock()

		if errors.Is(statusErr, ops.ErrOperationNotFound) && !stored {
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatal("janitor never evicted the completed operation and its outcome")
}

func TestResultsBeforeAnyStored(t *testing.T) {
	engine := newTestEngine(nil)

	op, err := engine.registry.Create("alice")
	require.NoError(t, err)

	outcome, err := engine.Results(op.ID(), "alice")
	require.NoError(t, err)
	assert.Empty(t, outcome.Results)
}
