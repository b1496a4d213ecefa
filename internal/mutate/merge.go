package mutate

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/githound/githound/pkg/gitlib"
)

// previewLimit caps the rendered conflict preview.
const previewLimit = 4096

// ConflictSide identifies one stage blob of a conflict.
type ConflictSide struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// MergeConflict describes one conflicted path. A nil side means that stage
// is absent: add/add conflicts have no base, delete conflicts lack a side.
type MergeConflict struct {
	FilePath string        `json:"file_path"`
	Ours     *ConflictSide `json:"ours,omitempty"`
	Theirs   *ConflictSide `json:"theirs,omitempty"`
	Base     *ConflictSide `json:"base,omitempty"`

	// Preview is a line-oriented ours-vs-theirs diff for text conflicts.
	Preview string `json:"preview,omitempty"`
}

// Strategy selects how a single conflicted path is resolved.
type Strategy string

// Resolution strategies.
const (
	StrategyOurs   Strategy = "ours"
	StrategyTheirs Strategy = "theirs"
	StrategyManual Strategy = "manual"
)

// Resolution resolves one conflicted path. Content is only consulted for
// the manual strategy.
type Resolution struct {
	Strategy Strategy
	Content  []byte
}

// PreviewMerge merges two revisions in memory and reports the conflicts the
// merge would produce. The working tree is not touched. An empty ours
// revision means HEAD.
func (m *Mutator) PreviewMerge(ours, theirs string) ([]MergeConflict, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	index, oursCommit, theirsCommit, err := m.mergeIndex(ours, theirs)
	if err != nil {
		return nil, err
	}
	defer index.Free()
	defer oursCommit.Free()
	defer theirsCommit.Free()

	return m.describeConflicts(index)
}

// Merge merges a revision into HEAD and commits the result. When the merge
// conflicts, no commit is created and the conflicts are returned alongside
// [ErrMergeConflicts].
func (m *Mutator) Merge(theirs, message string, author gitlib.Signature) (gitlib.Hash, []MergeConflict, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	index, oursCommit, theirsCommit, err := m.mergeIndex("", theirs)
	if err != nil {
		return gitlib.Hash{}, nil, err
	}
	defer index.Free()
	defer oursCommit.Free()
	defer theirsCommit.Free()

	if index.HasConflicts() {
		conflicts, descErr := m.describeConflicts(index)
		if descErr != nil {
			return gitlib.Hash{}, nil, descErr
		}

		return gitlib.Hash{}, conflicts, fmt.Errorf("%w: merging %s", ErrMergeConflicts, theirs)
	}

	hash, err := m.commitMergedIndex(index, message, author, oursCommit, theirsCommit)

	return hash, nil, err
}

// ResolveMerge merges a revision into HEAD, applies a resolution to every
// conflicted path and commits the result. Every conflict must have a
// resolution.
func (m *Mutator) ResolveMerge(theirs string, resolutions map[string]Resolution, message string, author gitlib.Signature) (gitlib.Hash, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	index, oursCommit, theirsCommit, err := m.mergeIndex("", theirs)
	if err != nil {
		return gitlib.Hash{}, err
	}
	defer index.Free()
	defer oursCommit.Free()
	defer theirsCommit.Free()

	conflicts, err := index.Conflicts()
	if err != nil {
		return gitlib.Hash{}, err
	}

	for _, conflict := range conflicts {
		path := conflict.Path()

		resolution, ok := resolutions[path]
		if !ok {
			return gitlib.Hash{}, fmt.Errorf("%w: %s", ErrUnresolvedConflict, path)
		}

		if err := m.applyResolution(index, conflict, resolution); err != nil {
			return gitlib.Hash{}, err
		}
	}

	return m.commitMergedIndex(index, message, author, oursCommit, theirsCommit)
}

// mergeIndex resolves both endpoints and merges them in memory. Callers own
// the returned index and both commits.
func (m *Mutator) mergeIndex(ours, theirs string) (*gitlib.Index, *gitlib.Commit, *gitlib.Commit, error) {
	oursCommit, err := m.resolveCommit(ours)
	if err != nil {
		return nil, nil, nil, err
	}

	theirsCommit, err := m.resolveCommit(theirs)
	if err != nil {
		oursCommit.Free()

		return nil, nil, nil, err
	}

	index, err := m.repo.MergeCommits(oursCommit, theirsCommit)
	if err != nil {
		oursCommit.Free()
		theirsCommit.Free()

		return nil, nil, nil, err
	}

	return index, oursCommit, theirsCommit, nil
}

// commitMergedIndex writes the merged index as a tree, commits it with both
// parents and syncs the working tree to the new HEAD.
func (m *Mutator) commitMergedIndex(index *gitlib.Index, message string, author gitlib.Signature, oursCommit, theirsCommit *gitlib.Commit) (gitlib.Hash, error) {
	treeHash, err := index.WriteTreeTo(m.repo)
	if err != nil {
		return gitlib.Hash{}, err
	}

	tree, err := m.repo.LookupTree(treeHash)
	if err != nil {
		return gitlib.Hash{}, err
	}
	defer tree.Free()

	hash, err := m.repo.CreateCommit(message, author, tree, oursCommit, theirsCommit)
	if err != nil {
		return gitlib.Hash{}, err
	}

	if err := m.repo.CheckoutHead(); err != nil {
		return gitlib.Hash{}, err
	}

	return hash, nil
}

// applyResolution replaces the conflict stages of one path with resolved
// content. A side-less ours/theirs resolution removes the path.
func (m *Mutator) applyResolution(index *gitlib.Index, conflict gitlib.Conflict, resolution Resolution) error {
	path := conflict.Path()

	var (
		content []byte
		deleted bool
	)

	switch resolution.Strategy {
	case StrategyOurs:
		content, deleted = m.stageContent(conflict.Ours)
	case StrategyTheirs:
		content, deleted = m.stageContent(conflict.Theirs)
	case StrategyManual:
		content = resolution.Content
	default:
		return fmt.Errorf("%w: %q for %s", ErrUnknownStrategy, resolution.Strategy, path)
	}

	if err := index.RemoveConflict(path); err != nil {
		return err
	}

	if deleted {
		return nil
	}

	blobHash, err := m.repo.CreateBlobFromBuffer(content)
	if err != nil {
		return err
	}

	return index.Add(path, blobHash, int64(len(content)))
}

// stageContent loads one stage blob. deleted reports an absent stage, which
// resolves to removing the path.
func (m *Mutator) stageContent(entry *gitlib.ConflictEntry) (content []byte, deleted bool) {
	if entry == nil {
		return nil, true
	}

	blob, err := m.repo.LookupBlob(entry.Hash)
	if err != nil {
		return nil, true
	}
	defer blob.Free()

	return append([]byte(nil), blob.Contents()...), false
}

// describeConflicts turns index conflicts into external records with text
// previews.
func (m *Mutator) describeConflicts(index *gitlib.Index) ([]MergeConflict, error) {
	conflicts, err := index.Conflicts()
	if err != nil {
		return nil, err
	}

	described := make([]MergeConflict, 0, len(conflicts))

	for _, conflict := range conflicts {
		described = append(described, MergeConflict{
			FilePath: conflict.Path(),
			Ours:     sideFrom(conflict.Ours),
			Theirs:   sideFrom(conflict.Theirs),
			Base:     sideFrom(conflict.Ancestor),
			Preview:  m.conflictPreview(conflict),
		})
	}

	return described, nil
}

func sideFrom(entry *gitlib.ConflictEntry) *ConflictSide {
	if entry == nil {
		return nil
	}

	return &ConflictSide{Hash: entry.Hash.String(), Size: entry.Size}
}

// conflictPreview renders an ours-vs-theirs line diff. Binary or unreadable
// sides yield an empty preview.
func (m *Mutator) conflictPreview(conflict gitlib.Conflict) string {
	ours, oursOK := m.sideText(conflict.Ours)
	theirs, theirsOK := m.sideText(conflict.Theirs)

	if !oursOK || !theirsOK {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(ours, theirs, true))

	var b strings.Builder

	for _, diff := range diffs {
		var prefix string

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}

		for _, line := range strings.Split(strings.TrimRight(diff.Text, "\n"), "\n") {
			if b.Len() >= previewLimit {
				b.WriteString("...\n")

				return b.String()
			}

			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// sideText loads one side as text. ok is false for absent, unreadable or
// binary blobs.
func (m *Mutator) sideText(entry *gitlib.ConflictEntry) (string, bool) {
	if entry == nil {
		return "", false
	}

	blob, err := m.repo.LookupBlob(entry.Hash)
	if err != nil {
		return "", false
	}
	defer blob.Free()

	if blob.IsBinary() {
		return "", false
	}

	return string(blob.Contents()), true
}
