package gitlib

import (
	"errors"
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// RevWalk wraps a libgit2 revision walker.
type RevWalk struct {
	walk *git2go.RevWalk
	repo *Repository
}

// Push adds a commit to start walking from.
func (w *RevWalk) Push(hash Hash) error {
	err := w.walk.Push(hash.ToOid())
	if err != nil {
		return fmt.Errorf("push to revwalk: %w", err)
	}

	return nil
}

// PushHead adds HEAD to start walking from.
func (w *RevWalk) PushHead() error {
	head, err := w.repo.Head()
	if err != nil {
		return err
	}

	return w.Push(head)
}

// NextHash advances the walk and returns the next commit hash, or [io.EOF]
// when exhausted. Callers that want to skip unreadable commits can look the
// hash up themselves.
func (w *RevWalk) NextHash() (Hash, error) {
	oid := new(git2go.Oid)

	nextErr := w.walk.Next(oid)
	if nextErr != nil {
		if git2go.IsErrorCode(nextErr, git2go.ErrorCodeIterOver) {
			return Hash{}, io.EOF
		}

		return Hash{}, fmt.Errorf("revwalk next: %w", nextErr)
	}

	return HashFromOid(oid), nil
}

// Next returns the next commit in the walk, or [io.EOF] when exhausted.
func (w *RevWalk) Next() (*Commit, error) {
	hash, err := w.NextHash()
	if err != nil {
		return nil, err
	}

	commit, lookupErr := w.repo.LookupCommit(hash)
	if lookupErr != nil {
		return nil, fmt.Errorf("lookup walked commit %s: %w", hash.Short(), lookupErr)
	}

	return commit, nil
}

// ForEach calls the callback for each commit in the walk, freeing each
// commit after the callback returns.
func (w *RevWalk) ForEach(cb func(*Commit) error) error {
	for {
		commit, err := w.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		cbErr := cb(commit)
		commit.Free()

		if cbErr != nil {
			return cbErr
		}
	}
}

// Free releases the walker resources.
func (w *RevWalk) Free() {
	if w.walk != nil {
		w.walk.Free()
		w.walk = nil
	}
}
