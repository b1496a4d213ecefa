package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// BlameHunk attributes a run of lines to the commit that last touched them.
type BlameHunk struct {
	CommitHash Hash
	Author     Signature
	StartLine  int // 1-based line number of the first line in the hunk.
	LineCount  int
	OrigPath   string
}

// Blame holds per-hunk attribution for a single file at a revision.
type Blame struct {
	blame *git2go.Blame
}

// BlameFile computes blame for a path. When newest is non-zero the blame is
// computed as of that commit instead of HEAD.
func (r *Repository) BlameFile(path string, newest Hash) (*Blame, error) {
	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return nil, fmt.Errorf("get blame options: %w", err)
	}

	if !newest.IsZero() {
		opts.NewestCommit = newest.ToOid()
	}

	blame, blameErr := r.repo.BlameFile(path, &opts)
	if blameErr != nil {
		return nil, fmt.Errorf("blame %s: %w", path, blameErr)
	}

	return &Blame{blame: blame}, nil
}

// HunkCount returns the number of hunks in the blame.
func (b *Blame) HunkCount() int {
	return b.blame.HunkCount()
}

// Hunk returns the blame hunk at the given index.
func (b *Blame) Hunk(index int) (BlameHunk, error) {
	hunk, err := b.blame.HunkByIndex(index)
	if err != nil {
		return BlameHunk{}, fmt.Errorf("get blame hunk: %w", err)
	}

	wrapped := BlameHunk{
		CommitHash: HashFromOid(hunk.FinalCommitId),
		StartLine:  int(hunk.FinalStartLineNumber),
		LineCount:  int(hunk.LinesInHunk),
		OrigPath:   hunk.OrigPath,
	}

	if hunk.FinalSignature != nil {
		wrapped.Author = Signature{
			Name:  hunk.FinalSignature.Name,
			Email: hunk.FinalSignature.Email,
			When:  hunk.FinalSignature.When,
		}
	}

	return wrapped, nil
}

// Free releases the blame resources.
func (b *Blame) Free() {
	if b.blame == nil {
		return
	}

	_ = b.blame.Free()
	b.blame = nil
}
