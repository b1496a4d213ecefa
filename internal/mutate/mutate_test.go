package mutate_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githound/githound/internal/mutate"
	"github.com/githound/githound/pkg/gitlib"
	"github.com/githound/githound/pkg/gitlib/gittest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthor() gitlib.Signature {
	return gitlib.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func openMutator(t *testing.T, path string) *mutate.Mutator {
	t.Helper()

	m, err := mutate.Open(path, testLogger())
	require.NoError(t, err)

	t.Cleanup(m.Close)

	return m
}

// conflictRepo builds a history where master and the other branch both
// rewrote conflict.txt from the same base.
func conflictRepo(t *testing.T) *gittest.Repo {
	t.Helper()

	repo := gittest.New(t)

	repo.CreateFile("conflict.txt", "base\n")
	repo.CreateFile("stable.txt", "keep\n")
	repo.Commit("base")
	repo.CreateBranch("other")

	repo.CreateFile("conflict.txt", "ours\n")
	repo.Commit("our side")

	repo.Checkout("other")
	repo.CreateFile("conflict.txt", "theirs\n")
	repo.Commit("their side")

	repo.Checkout("master")

	return repo
}

func TestOpenNotARepository(t *testing.T) {
	_, err := mutate.Open(t.TempDir(), testLogger())
	assert.ErrorIs(t, err, gitlib.ErrNotARepository)
}

func TestCommitExplicitPaths(t *testing.T) {
	repo := gittest.New(t)
	repo.CreateFile("a.txt", "a\n")
	repo.Commit("initial")

	m := openMutator(t, repo.Path)

	repo.CreateFile("b.txt", "b\n")
	repo.CreateFile("untracked.txt", "skip\n")

	hash, err := m.Commit("add b", testAuthor(), "b.txt")
	require.NoError(t, err)
	assert.False(t, hash.IsZero())

	head, err := m.Repo().HeadCommit()
	require.NoError(t, err)

	defer head.Free()

	assert.Equal(t, hash, head.Hash())
	assert.Equal(t, "add b", head.Message())
	assert.Equal(t, 1, head.NumParents())

	_, err = head.File("b.txt")
	assert.NoError(t, err)

	_, err = head.File("untracked.txt")
	assert.Error(t, err)
}

func TestCommitAllStagesEverything(t *testing.T) {
	repo := gittest.New(t)
	repo.CreateFile("a.txt", "a\n")
	repo.Commit("initial")

	m := openMutator(t, repo.Path)

	repo.CreateFile("b.txt", "b\n")
	repo.CreateFile("c.txt", "c\n")

	_, err := m.Commit("add both", testAuthor())
	require.NoError(t, err)

	head, err := m.Repo().HeadCommit()
	require.NoError(t, err)

	defer head.Free()

	_, err = head.File("b.txt")
	assert.NoError(t, err)

	_, err = head.File("c.txt")
	assert.NoError(t, err)
}

func TestCommitIntoEmptyRepository(t *testing.T) {
	repo := gittest.New(t)

	m := openMutator(t, repo.Path)

	repo.CreateFile("first.txt", "hello\n")

	hash, err := m.Commit("first", testAuthor())
	require.NoError(t, err)

	head, err := m.Repo().HeadCommit()
	require.NoError(t, err)

	defer head.Free()

	assert.Equal(t, hash, head.Hash())
	assert.Zero(t, head.NumParents())
}

func TestBranchLifecycle(t *testing.T) {
	repo := gittest.New(t)
	repo.CreateFile("a.txt", "a\n")
	repo.Commit("initial")

	m := openMutator(t, repo.Path)

	require.NoError(t, m.CreateBranch("feature", ""))

	branches, err := m.Repo().Branches()
	require.NoError(t, err)
	assert.Contains(t, branches, "feature")

	require.NoError(t, m.Checkout("feature"))

	current, err := m.Repo().CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature", current)

	require.NoError(t, m.Checkout("master"))
	require.NoError(t, m.DeleteBranch("feature"))

	branches, err = m.Repo().Branches()
	require.NoError(t, err)
	assert.NotContains(t, branches, "feature")
}

func TestCreateBranchAtRevision(t *testing.T) {
	repo := gittest.New(t)
	repo.CreateFile("a.txt", "a\n")
	first := repo.Commit("first")
	repo.CreateFile("b.txt", "b\n")
	repo.Commit("second")

	m := openMutator(t, repo.Path)

	require.NoError(t, m.CreateBranch("pinned", "HEAD~1"))

	commit, err := m.Repo().RevparseCommit("pinned")
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, first, commit.Hash())
}

func TestPreviewMergeReportsConflicts(t *testing.T) {
	repo := conflictRepo(t)
	m := openMutator(t, repo.Path)

	conflicts, err := m.PreviewMerge("", "other")
	require.NoError(t, err)

	require.Len(t, conflicts, 1)

	conflict := conflicts[0]
	assert.Equal(t, "conflict.txt", conflict.FilePath)
	require.NotNil(t, conflict.Ours)
	require.NotNil(t, conflict.Theirs)
	require.NotNil(t, conflict.Base)
	assert.Len(t, conflict.Ours.Hash, 40)

	assert.Contains(t, conflict.Preview, "-ours")
	assert.Contains(t, conflict.Preview, "+theirs")

	// Detection is read-only.
	assert.Equal(t, "ours\n", repo.ReadFile("conflict.txt"))
}

func TestMergeCleanCommitsBothSides(t *testing.T) {
	repo := gittest.New(t)
	repo.CreateFile("base.txt", "base\n")
	repo.Commit("base")
	repo.CreateBranch("feature")

	repo.CreateFile("main.txt", "main\n")
	repo.Commit("main work")

	repo.Checkout("feature")
	repo.CreateFile("feature.txt", "feature\n")
	repo.Commit("feature work")

	repo.Checkout("master")

	m := openMutator(t, repo.Path)

	hash, conflicts, err := m.Merge("feature", "merge feature", testAuthor())
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.False(t, hash.IsZero())

	head, err := m.Repo().HeadCommit()
	require.NoError(t, err)

	defer head.Free()

	assert.Equal(t, hash, head.Hash())
	assert.Equal(t, 2, head.NumParents())

	assert.Equal(t, "main\n", repo.ReadFile("main.txt"))
	assert.Equal(t, "feature\n", repo.ReadFile("feature.txt"))
}

func TestMergeConflictReturnsConflicts(t *testing.T) {
	repo := conflictRepo(t)
	m := openMutator(t, repo.Path)

	before, err := m.Repo().Head()
	require.NoError(t, err)

	_, conflicts, err := m.Merge("other", "merge other", testAuthor())
	assert.ErrorIs(t, err, mutate.ErrMergeConflicts)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "conflict.txt", conflicts[0].FilePath)

	// No commit was created.
	after, err := m.Repo().Head()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolveMergeStrategies(t *testing.T) {
	cases := map[string]struct {
		resolution mutate.Resolution
		want       string
	}{
		"ours":   {mutate.Resolution{Strategy: mutate.StrategyOurs}, "ours\n"},
		"theirs": {mutate.Resolution{Strategy: mutate.StrategyTheirs}, "theirs\n"},
		"manual": {mutate.Resolution{Strategy: mutate.StrategyManual, Content: []byte("merged\n")}, "merged\n"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo := conflictRepo(t)
			m := openMutator(t, repo.Path)

			hash, err := m.ResolveMerge("other",
				map[string]mutate.Resolution{"conflict.txt": tc.resolution},
				"merge other", testAuthor())
			require.NoError(t, err)

			head, headErr := m.Repo().HeadCommit()
			require.NoError(t, headErr)

			defer head.Free()

			assert.Equal(t, hash, head.Hash())
			assert.Equal(t, 2, head.NumParents())

			assert.Equal(t, tc.want, repo.ReadFile("conflict.txt"))
			assert.Equal(t, "keep\n", repo.ReadFile("stable.txt"))
		})
	}
}

func TestResolveMergeMissingResolution(t *testing.T) {
	repo := conflictRepo(t)
	m := openMutator(t, repo.Path)

	_, err := m.ResolveMerge("other", nil, "merge other", testAuthor())
	assert.ErrorIs(t, err, mutate.ErrUnresolvedConflict)
}

func TestResolveMergeUnknownStrategy(t *testing.T) {
	repo := conflictRepo(t)
	m := openMutator(t, repo.Path)

	_, err := m.ResolveMerge("other",
		map[string]mutate.Resolution{"conflict.txt": {Strategy: "rebase"}},
		"merge other", testAuthor())
	assert.ErrorIs(t, err, mutate.ErrUnknownStrategy)
}

func TestConcurrentCommitsSerialize(t *testing.T) {
	repo := gittest.New(t)
	repo.CreateFile("a.txt", "a\n")
	repo.Commit("initial")

	repo.CreateFile("one.txt", "1\n")
	repo.CreateFile("two.txt", "2\n")

	first := openMutator(t, repo.Path)
	second := openMutator(t, repo.Path)

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		_, err := first.Commit("add one", testAuthor(), "one.txt")
		assert.NoError(t, err)
	}()

	go func() {
		defer wg.Done()

		_, err := second.Commit("add two", testAuthor(), "two.txt")
		assert.NoError(t, err)
	}()

	wg.Wait()

	// Both commits landed on a linear history.
	walk, err := first.Repo().Walk()
	require.NoError(t, err)

	defer walk.Free()

	require.NoError(t, walk.PushHead())

	count := 0

	for {
		_, nextErr := walk.NextHash()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		require.NoError(t, nextErr)

		count++
	}

	assert.Equal(t, 3, count)
}
