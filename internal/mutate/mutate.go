// Package mutate implements working-tree write operations: staging and
// committing, branch management, merges with conflict detection and per-file
// conflict resolution. A working tree is single-writer; all operations
// serialize on a per-repository-path mutex.
package mutate

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/githound/githound/pkg/gitlib"
)

// Typed errors surfaced by mutation operations.
var (
	// ErrMergeConflicts is returned when a merge cannot complete cleanly.
	ErrMergeConflicts = errors.New("merge produced conflicts")
	// ErrUnresolvedConflict is returned when a resolution pass leaves a
	// conflicted path without a resolution.
	ErrUnresolvedConflict = errors.New("conflict has no resolution")
	// ErrUnknownStrategy is returned for a resolution strategy outside the
	// ours/theirs/manual set.
	ErrUnknownStrategy = errors.New("unknown resolution strategy")
)

// Per-path locks shared by every Mutator on the same repository, so two
// handles to one working tree still serialize.
var (
	locksMu sync.Mutex
	locks   = make(map[string]*sync.Mutex)
)

func pathLock(path string) *sync.Mutex {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	locksMu.Lock()
	defer locksMu.Unlock()

	lock, ok := locks[path]
	if !ok {
		lock = &sync.Mutex{}
		locks[path] = lock
	}

	return lock
}

// Mutator performs write operations against one repository working tree.
type Mutator struct {
	repo *gitlib.Repository
	lock *sync.Mutex
	log  *slog.Logger
}

// Open opens the repository at path for mutation.
func Open(path string, logger *slog.Logger) (*Mutator, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Mutator{repo: repo, lock: pathLock(path), log: logger}, nil
}

// Repo returns the underlying repository handle.
func (m *Mutator) Repo() *gitlib.Repository {
	return m.repo
}

// Close releases the underlying repository.
func (m *Mutator) Close() {
	m.repo.Free()
}

// Commit stages the given paths (everything when no paths are given) and
// commits them. The first commit of an empty repository has no parent.
func (m *Mutator) Commit(message string, author gitlib.Signature, paths ...string) (gitlib.Hash, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	index, err := m.repo.Index()
	if err != nil {
		return gitlib.Hash{}, err
	}
	defer index.Free()

	if len(paths) == 0 {
		if err := index.AddAll("*"); err != nil {
			return gitlib.Hash{}, err
		}
	} else {
		for _, path := range paths {
			if err := index.AddByPath(path); err != nil {
				return gitlib.Hash{}, err
			}
		}
	}

	if err := index.Write(); err != nil {
		return gitlib.Hash{}, err
	}

	treeHash, err := index.WriteTree()
	if err != nil {
		return gitlib.Hash{}, err
	}

	tree, err := m.repo.LookupTree(treeHash)
	if err != nil {
		return gitlib.Hash{}, err
	}
	defer tree.Free()

	var parents []*gitlib.Commit

	head, headErr := m.repo.HeadCommit()
	if headErr == nil {
		defer head.Free()

		parents = append(parents, head)
	}

	return m.repo.CreateCommit(message, author, tree, parents...)
}

// CreateBranch creates a local branch at the given revision (HEAD when
// empty).
func (m *Mutator) CreateBranch(name, revision string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	target, err := m.resolveCommit(revision)
	if err != nil {
		return err
	}
	defer target.Free()

	return m.repo.CreateBranch(name, target)
}

// DeleteBranch removes a local branch.
func (m *Mutator) DeleteBranch(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.repo.DeleteBranch(name)
}

// Checkout switches to a local branch, forcing the working tree and index
// to match it.
func (m *Mutator) Checkout(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.log.Info("checking out branch", slog.String("branch", name))

	return m.repo.CheckoutBranch(name)
}

// resolveCommit resolves a revision, defaulting to HEAD.
func (m *Mutator) resolveCommit(revision string) (*gitlib.Commit, error) {
	if revision == "" {
		return m.repo.HeadCommit()
	}

	return m.repo.RevparseCommit(revision)
}
