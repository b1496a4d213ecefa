// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/githound/githound/pkg/gitlib"
)

// Repo is a temporary git repository with helpers for staging commits.
type Repo struct {
	T      *testing.T
	Path   string
	Native *git2go.Repository

	// commits get strictly increasing timestamps so time-ordered walks
	// are deterministic.
	clock time.Time
}

// New creates an empty repository under t.TempDir. Resources are released
// via t.Cleanup.
func New(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()

	native, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(native.Free)

	return &Repo{
		T:      t,
		Path:   dir,
		Native: native,
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// CreateFile writes a file into the working directory, creating parent
// directories as needed.
func (r *Repo) CreateFile(name, content string) {
	r.T.Helper()

	path := filepath.Join(r.Path, name)
	dir := filepath.Dir(path)

	if dir != r.Path {
		err := os.MkdirAll(dir, 0o755)
		require.NoError(r.T, err)
	}

	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(r.T, err)
}

// DeleteFile removes a file from the working directory.
func (r *Repo) DeleteFile(name string) {
	r.T.Helper()

	err := os.Remove(filepath.Join(r.Path, name))
	require.NoError(r.T, err)
}

// ReadFile returns the working-directory content of a file.
func (r *Repo) ReadFile(name string) string {
	r.T.Helper()

	data, err := os.ReadFile(filepath.Join(r.Path, name))
	require.NoError(r.T, err)

	return string(data)
}

// Commit stages everything and commits as the default test author.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.T.Helper()

	return r.CommitAs("Test User", "test@example.com", message)
}

// CommitAs stages everything and commits with the given author identity.
func (r *Repo) CommitAs(name, email, message string) gitlib.Hash {
	r.T.Helper()

	index, err := r.Native.Index()
	require.NoError(r.T, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(r.T, err)

	err = index.Write()
	require.NoError(r.T, err)

	treeID, err := index.WriteTree()
	require.NoError(r.T, err)

	tree, err := r.Native.LookupTree(treeID)
	require.NoError(r.T, err)

	defer tree.Free()

	r.clock = r.clock.Add(time.Minute)
	sig := &git2go.Signature{Name: name, Email: email, When: r.clock}

	var parents []*git2go.Commit

	head, err := r.Native.Head()
	if err == nil {
		headCommit, lookupErr := r.Native.LookupCommit(head.Target())
		require.NoError(r.T, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := r.Native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(r.T, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// CreateBranch creates a local branch pointing at HEAD.
func (r *Repo) CreateBranch(name string) {
	r.T.Helper()

	head, err := r.Native.Head()
	require.NoError(r.T, err)

	defer head.Free()

	headCommit, err := r.Native.LookupCommit(head.Target())
	require.NoError(r.T, err)

	defer headCommit.Free()

	branch, err := r.Native.CreateBranch(name, headCommit, false)
	require.NoError(r.T, err)

	branch.Free()
}

// Checkout switches HEAD to a local branch and forces the working tree to
// match it.
func (r *Repo) Checkout(name string) {
	r.T.Helper()

	err := r.Native.SetHead("refs/heads/" + name)
	require.NoError(r.T, err)

	err = r.Native.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	require.NoError(r.T, err)
}

// CreateTag creates a lightweight tag pointing at HEAD.
func (r *Repo) CreateTag(name string) {
	r.T.Helper()

	head, err := r.Native.Head()
	require.NoError(r.T, err)

	defer head.Free()

	obj, err := r.Native.LookupCommit(head.Target())
	require.NoError(r.T, err)

	defer obj.Free()

	_, err = r.Native.Tags.CreateLightweight(name, obj, false)
	require.NoError(r.T, err)
}

// Open opens the repository through the gitlib wrapper. The handle is freed
// via t.Cleanup.
func (r *Repo) Open() *gitlib.Repository {
	r.T.Helper()

	repo, err := gitlib.OpenRepository(r.Path)
	require.NoError(r.T, err)

	r.T.Cleanup(repo.Free)

	return repo
}
