package gitlib

import (
	"errors"
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// ConflictEntry is one side of a merge conflict (ancestor, ours or theirs).
type ConflictEntry struct {
	Path string
	Hash Hash
	Size int64
}

// Conflict holds the three stages of a single conflicted path. A nil side
// means that stage is absent (e.g. add/add conflicts have no ancestor).
type Conflict struct {
	Ancestor *ConflictEntry
	Ours     *ConflictEntry
	Theirs   *ConflictEntry
}

// Path returns the conflicted path, preferring ours, then theirs, then the
// ancestor.
func (c Conflict) Path() string {
	switch {
	case c.Ours != nil:
		return c.Ours.Path
	case c.Theirs != nil:
		return c.Theirs.Path
	case c.Ancestor != nil:
		return c.Ancestor.Path
	}

	return ""
}

// Index wraps a libgit2 index.
type Index struct {
	index *git2go.Index
}

// HasConflicts reports whether the index contains conflicted entries.
func (i *Index) HasConflicts() bool {
	return i.index.HasConflicts()
}

// Conflicts returns all conflicted paths with their stage entries.
func (i *Index) Conflicts() ([]Conflict, error) {
	iter, err := i.index.ConflictIterator()
	if err != nil {
		return nil, fmt.Errorf("conflict iterator: %w", err)
	}
	defer iter.Free()

	var conflicts []Conflict

	for {
		conflict, nextErr := iter.Next()
		if nextErr != nil {
			if git2go.IsErrorCode(nextErr, git2go.ErrorCodeIterOver) || errors.Is(nextErr, io.EOF) {
				break
			}

			return nil, fmt.Errorf("next conflict: %w", nextErr)
		}

		conflicts = append(conflicts, Conflict{
			Ancestor: conflictEntryFrom(conflict.Ancestor),
			Ours:     conflictEntryFrom(conflict.Our),
			Theirs:   conflictEntryFrom(conflict.Their),
		})
	}

	return conflicts, nil
}

func conflictEntryFrom(entry *git2go.IndexEntry) *ConflictEntry {
	if entry == nil {
		return nil
	}

	return &ConflictEntry{
		Path: entry.Path,
		Hash: HashFromOid(entry.Id),
		Size: int64(entry.Size),
	}
}

// RemoveConflict clears the conflict stages for a path.
func (i *Index) RemoveConflict(path string) error {
	err := i.index.RemoveConflict(path)
	if err != nil {
		return fmt.Errorf("remove conflict: %w", err)
	}

	return nil
}

// AddByPath stages the working-tree content of a path.
func (i *Index) AddByPath(path string) error {
	err := i.index.AddByPath(path)
	if err != nil {
		return fmt.Errorf("add %s to index: %w", path, err)
	}

	return nil
}

// Add stages an existing blob at path.
func (i *Index) Add(path string, hash Hash, size int64) error {
	err := i.index.Add(&git2go.IndexEntry{
		Path: path,
		Id:   hash.ToOid(),
		Mode: git2go.FilemodeBlob,
		Size: uint32(size),
	})
	if err != nil {
		return fmt.Errorf("add %s to index: %w", path, err)
	}

	return nil
}

// AddAll stages every working-tree change matching the pathspecs.
func (i *Index) AddAll(pathspecs ...string) error {
	err := i.index.AddAll(pathspecs, git2go.IndexAddDefault, nil)
	if err != nil {
		return fmt.Errorf("add all to index: %w", err)
	}

	return nil
}

// Write flushes the index to disk.
func (i *Index) Write() error {
	err := i.index.Write()
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// WriteTree writes the index as a tree and returns its hash.
func (i *Index) WriteTree() (Hash, error) {
	oid, err := i.index.WriteTree()
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	return HashFromOid(oid), nil
}

// WriteTreeTo writes the index as a tree into repo. In-memory indexes
// produced by merges have no backing repository and must go through this.
func (i *Index) WriteTreeTo(repo *Repository) (Hash, error) {
	oid, err := i.index.WriteTreeTo(repo.repo)
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	return HashFromOid(oid), nil
}

// Free releases the index resources.
func (i *Index) Free() {
	if i.index != nil {
		i.index.Free()
		i.index = nil
	}
}
