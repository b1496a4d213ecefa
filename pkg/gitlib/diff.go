package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// Delta returns the delta at the given index.
func (d *Diff) Delta(index int) (DiffDelta, error) {
	delta, err := d.diff.Delta(index)
	if err != nil {
		return DiffDelta{}, fmt.Errorf("get delta: %w", err)
	}

	return DiffDelta{
		Status:  delta.Status,
		OldFile: DiffFile{Path: delta.OldFile.Path, Hash: HashFromOid(delta.OldFile.Oid), Size: int64(delta.OldFile.Size)},
		NewFile: DiffFile{Path: delta.NewFile.Path, Hash: HashFromOid(delta.NewFile.Oid), Size: int64(delta.NewFile.Size)},
	}, nil
}

// Change returns the delta at the given index mapped to a Change, or nil
// when the delta carries no meaningful content change.
func (d *Diff) Change(index int) (*Change, error) {
	delta, err := d.Delta(index)
	if err != nil {
		return nil, err
	}

	return changeFromDelta(delta), nil
}

// DeltaLineStats returns the inserted and deleted line counts for the delta
// at the given index.
func (d *Diff) DeltaLineStats(index int) (insertions, deletions int, err error) {
	deltaIndex := -1
	lineCallback := func(counting bool) git2go.DiffForEachLineCallback {
		return func(line git2go.DiffLine) error {
			if !counting {
				return nil
			}
			switch line.Origin {
			case git2go.DiffLineAddition:
				insertions++
			case git2go.DiffLineDeletion:
				deletions++
			}

			return nil
		}
	}

	statsErr := d.diff.ForEach(func(_ git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		deltaIndex++
		counting := deltaIndex == index

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return lineCallback(counting), nil
		}, nil
	}, git2go.DiffDetailLines)
	if statsErr != nil {
		return 0, 0, fmt.Errorf("get line stats: %w", statsErr)
	}

	return insertions, deletions, nil
}

// Patch returns the unified-diff text for the delta at the given index.
func (d *Diff) Patch(index int) (string, error) {
	patch, err := d.diff.Patch(index)
	if err != nil {
		return "", fmt.Errorf("get patch: %w", err)
	}
	defer func() { _ = patch.Free() }()

	text, strErr := patch.String()
	if strErr != nil {
		return "", fmt.Errorf("render patch: %w", strErr)
	}

	return text, nil
}

// Stats returns the diff stats.
func (d *Diff) Stats() (*DiffStats, error) {
	stats, err := d.diff.Stats()
	if err != nil {
		return nil, fmt.Errorf("get diff stats: %w", err)
	}

	return &DiffStats{stats: stats}, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	_ = d.diff.Free()
	d.diff = nil
}

// DiffDelta represents a file change in a diff.
type DiffDelta struct {
	Status  git2go.Delta
	OldFile DiffFile
	NewFile DiffFile
}

// DiffFile represents a file in a diff delta.
type DiffFile struct {
	Path string
	Hash Hash
	Size int64
}

// DiffStats wraps libgit2 diff stats.
type DiffStats struct {
	stats *git2go.DiffStats
}

// Insertions returns the number of insertions.
func (s *DiffStats) Insertions() int {
	return s.stats.Insertions()
}

// Deletions returns the number of deletions.
func (s *DiffStats) Deletions() int {
	return s.stats.Deletions()
}

// FilesChanged returns the number of files changed.
func (s *DiffStats) FilesChanged() int {
	return s.stats.FilesChanged()
}

// Free releases the stats resources.
func (s *DiffStats) Free() {
	if s.stats == nil {
		return
	}

	_ = s.stats.Free()
	s.stats = nil
}
