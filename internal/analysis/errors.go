package analysis

import (
	"errors"

	"github.com/githound/githound/pkg/gitlib"
)

// Typed errors surfaced to the boundary layers. Repository and revision
// failures are the gitlib sentinels so errors.Is works across both packages.
var (
	// ErrNotAGitRepository is returned when the path does not exist or does
	// not contain a git repository.
	ErrNotAGitRepository = gitlib.ErrNotARepository
	// ErrRepositoryAccess is returned when the repository cannot be read due
	// to permissions.
	ErrRepositoryAccess = gitlib.ErrRepositoryAccess
	// ErrInvalidRevision is returned when a revision spec does not resolve
	// to a commit.
	ErrInvalidRevision = gitlib.ErrInvalidRevision

	// ErrFileNotFoundInRevision is returned when a path does not exist in
	// the tree of the requested revision.
	ErrFileNotFoundInRevision = errors.New("file not found in revision")
)
