// Package analysis implements the repository analysis engine: commit history
// traversal, blame, diffs and statistics over a libgit2-backed repository.
package analysis

import (
	"log/slog"

	"github.com/githound/githound/pkg/gitlib"
)

// Analyzer runs analysis operations against a single open repository. It is
// a live view: accessors re-read repository state on every call.
type Analyzer struct {
	repo *gitlib.Repository
	log  *slog.Logger
}

// Open opens the repository at path and returns an analyzer over it.
// Failures are classified as [ErrNotAGitRepository] or [ErrRepositoryAccess].
func Open(path string, logger *slog.Logger) (*Analyzer, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{repo: repo, log: logger}, nil
}

// NewAnalyzer wraps an already open repository.
func NewAnalyzer(repo *gitlib.Repository, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{repo: repo, log: logger}
}

// Repo returns the underlying repository handle.
func (a *Analyzer) Repo() *gitlib.Repository {
	return a.repo
}

// Close releases the underlying repository.
func (a *Analyzer) Close() {
	a.repo.Free()
}
