package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/githound/githound/pkg/gitlib"
	"github.com/githound/githound/pkg/identity"
)

// ErrStopWalk stops a history walk early without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// ErrInvalidFilter is returned when a filter fails boundary validation.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter narrows a history walk. The zero value walks the full history of
// the current branch.
type Filter struct {
	// Branch selects the starting ref. Empty means HEAD.
	Branch string

	// AuthorPattern matches the author name or email, case-insensitive.
	// Treated as a glob when it contains * or ?, substring otherwise.
	AuthorPattern string

	// MessagePattern is a case-insensitive substring match on the message.
	MessagePattern string

	// Since and Until bound the commit date, both inclusive.
	Since *time.Time
	Until *time.Time

	// FilePath restricts the walk to commits touching this exact path.
	FilePath string

	// MaxCount caps the number of commits produced. Zero means unlimited.
	MaxCount int
}

// Validate checks the filter once at the boundary.
func (f Filter) Validate() error {
	if f.MaxCount < 0 {
		return fmt.Errorf("%w: max count must not be negative", ErrInvalidFilter)
	}

	if f.Since != nil && f.Until != nil && f.Since.After(*f.Until) {
		return fmt.Errorf("%w: since is after until", ErrInvalidFilter)
	}

	if _, err := compilePattern(f.AuthorPattern); err != nil {
		return fmt.Errorf("%w: author pattern: %v", ErrInvalidFilter, err)
	}

	return nil
}

// matchFunc reports whether a lowercased candidate string matches.
type matchFunc func(string) bool

// compilePattern builds a case-insensitive matcher. Patterns containing
// * or ? are compiled as globs; anything else matches as a substring.
// An empty pattern matches everything.
func compilePattern(pattern string) (matchFunc, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}

	lowered := strings.ToLower(pattern)

	if strings.ContainsAny(pattern, "*?") {
		g, err := glob.Compile(lowered)
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", pattern, err)
		}

		return g.Match, nil
	}

	return func(s string) bool { return strings.Contains(s, lowered) }, nil
}

// compiledFilter is a Filter with its patterns compiled.
type compiledFilter struct {
	Filter

	author  matchFunc
	message matchFunc
}

func (f Filter) compile() (*compiledFilter, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	author, err := compilePattern(f.AuthorPattern)
	if err != nil {
		return nil, err
	}

	message, err := compilePattern(f.MessagePattern)
	if err != nil {
		return nil, err
	}

	return &compiledFilter{Filter: f, author: author, message: message}, nil
}

// matchesCommit applies the cheap metadata filters.
func (cf *compiledFilter) matchesCommit(c *gitlib.Commit) bool {
	author := c.Author()

	if !identity.Matches(author.Name, author.Email, cf.author) {
		return false
	}

	if !cf.message(strings.ToLower(c.Message())) {
		return false
	}

	if cf.Since != nil && author.When.Before(*cf.Since) {
		return false
	}

	if cf.Until != nil && author.When.After(*cf.Until) {
		return false
	}

	return true
}

// Walk traverses history reverse-chronologically, calling fn for each commit
// passing the filter together with its file changes. Returning [ErrStopWalk]
// from fn ends the walk early without error.
//
// A commit whose objects cannot be read is skipped with a warning; the walk
// continues with partial results.
func (a *Analyzer) Walk(ctx context.Context, filter Filter, fn func(Commit, []FileChange) error) error {
	compiled, err := filter.compile()
	if err != nil {
		return err
	}

	walk, err := a.repo.Walk()
	if err != nil {
		return err
	}
	defer walk.Free()

	if err := a.pushStart(walk, filter.Branch); err != nil {
		return err
	}

	yielded := 0

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		hash, nextErr := walk.NextHash()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}

		if nextErr != nil {
			return nextErr
		}

		record, files, stepErr := a.commitStep(compiled, hash)
		if stepErr != nil {
			a.skipAndLog(hash, stepErr)

			continue
		}

		if record == nil {
			continue // Filtered out.
		}

		cbErr := fn(*record, files)
		if errors.Is(cbErr, ErrStopWalk) {
			return nil
		}

		if cbErr != nil {
			return cbErr
		}

		yielded++
		if filter.MaxCount > 0 && yielded >= filter.MaxCount {
			return nil
		}
	}
}

// pushStart seeds the walk from HEAD or a named ref.
func (a *Analyzer) pushStart(walk *gitlib.RevWalk, branch string) error {
	if branch == "" {
		return walk.PushHead()
	}

	commit, err := a.repo.RevparseCommit(branch)
	if err != nil {
		return err
	}
	defer commit.Free()

	return walk.Push(commit.Hash())
}

// commitStep analyzes a single walked commit. It returns (nil, nil, nil)
// when the commit does not pass the filter.
func (a *Analyzer) commitStep(cf *compiledFilter, hash gitlib.Hash) (*Commit, []FileChange, error) {
	commit, err := a.repo.LookupCommit(hash)
	if err != nil {
		return nil, nil, err
	}
	defer commit.Free()

	if !cf.matchesCommit(commit) {
		return nil, nil, nil
	}

	files, filesErr := a.commitChanges(commit)
	if filesErr != nil {
		return nil, nil, filesErr
	}

	if cf.FilePath != "" && !touchesPath(files, cf.FilePath) {
		return nil, nil, nil
	}

	record := commitRecord(commit, files)

	return &record, files, nil
}

// skipAndLog is the best-effort traversal policy: a commit that cannot be
// analyzed is dropped with a warning instead of failing the whole walk.
func (a *Analyzer) skipAndLog(hash gitlib.Hash, err error) {
	a.log.Warn("skipping unreadable commit",
		slog.String("commit", hash.Short()),
		slog.Any("error", err))
}

// commitChanges diffs a commit against its first parent (or the empty tree
// for root commits) and classifies every file change.
func (a *Analyzer) commitChanges(commit *gitlib.Commit) ([]FileChange, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	var parentTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return nil, parentErr
		}
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
		defer parentTree.Free()
	}

	diff, err := a.repo.DiffTreeToTree(parentTree, tree, &gitlib.DiffOptions{DetectRenames: true})
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	return collectFileChanges(diff, nil, false)
}

// collectFileChanges turns diff deltas into FileChange records. When keep is
// non-nil only paths it accepts are included; withPatch attaches the unified
// patch text per file.
func collectFileChanges(diff *gitlib.Diff, keep matchFunc, withPatch bool) ([]FileChange, error) {
	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, err
	}

	changes := make([]FileChange, 0, numDeltas)

	for i := range numDeltas {
		change, changeErr := diff.Change(i)
		if changeErr != nil || change == nil {
			continue
		}

		fc := fileChangeFrom(change)

		if keep != nil && !keep(fc.FilePath) {
			continue
		}

		insertions, deletions, statsErr := diff.DeltaLineStats(i)
		if statsErr == nil {
			fc.Insertions = insertions
			fc.Deletions = deletions
		}

		if withPatch {
			patch, patchErr := diff.Patch(i)
			if patchErr == nil {
				fc.Patch = patch
			}
		}

		changes = append(changes, fc)
	}

	return changes, nil
}

// fileChangeFrom maps a tree change to its external classification.
func fileChangeFrom(change *gitlib.Change) FileChange {
	switch change.Action {
	case gitlib.Insert:
		return FileChange{FilePath: change.To.Name, ChangeType: ChangeAdded}
	case gitlib.Delete:
		return FileChange{FilePath: change.From.Name, ChangeType: ChangeDeleted}
	case gitlib.Rename:
		return FileChange{FilePath: change.To.Name, ChangeType: ChangeRenamed, OriginalPath: change.From.Name}
	case gitlib.Copy:
		return FileChange{FilePath: change.To.Name, ChangeType: ChangeCopied, OriginalPath: change.From.Name}
	case gitlib.Modify:
		return FileChange{FilePath: change.To.Name, ChangeType: ChangeModified}
	}

	return FileChange{FilePath: change.To.Name, ChangeType: ChangeModified}
}

// touchesPath reports whether any change involves the exact path.
func touchesPath(files []FileChange, path string) bool {
	for _, fc := range files {
		if fc.FilePath == path || fc.OriginalPath == path {
			return true
		}
	}

	return false
}

// commitRecord builds the external commit record.
func commitRecord(commit *gitlib.Commit, files []FileChange) Commit {
	author := commit.Author()

	parents := commit.ParentHashes()
	parentHex := make([]string, len(parents))

	for i, p := range parents {
		parentHex[i] = p.String()
	}

	var insertions, deletions int

	for _, fc := range files {
		insertions += fc.Insertions
		deletions += fc.Deletions
	}

	return Commit{
		Hash:         commit.Hash().String(),
		Author:       author.Name,
		AuthorEmail:  author.Email,
		Date:         author.When,
		Message:      commit.Message(),
		ParentHashes: parentHex,
		FilesChanged: len(files),
		Insertions:   insertions,
		Deletions:    deletions,
	}
}

// Commits collects the walk into a slice.
func (a *Analyzer) Commits(ctx context.Context, filter Filter) ([]Commit, error) {
	commits := make([]Commit, 0)

	err := a.Walk(ctx, filter, func(c Commit, _ []FileChange) error {
		commits = append(commits, c)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}

// CountCommits reports how many commits the filter would yield, without
// computing file changes. FilePath is not consulted, so the count is an
// upper bound when it is set; the metadata filters and MaxCount are exact.
// Unreadable commits are skipped the same way Walk skips them.
func (a *Analyzer) CountCommits(ctx context.Context, filter Filter) (int, error) {
	compiled, err := filter.compile()
	if err != nil {
		return 0, err
	}

	walk, err := a.repo.Walk()
	if err != nil {
		return 0, err
	}
	defer walk.Free()

	if err := a.pushStart(walk, filter.Branch); err != nil {
		return 0, err
	}

	count := 0

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		hash, nextErr := walk.NextHash()
		if errors.Is(nextErr, io.EOF) {
			return count, nil
		}

		if nextErr != nil {
			return 0, nextErr
		}

		commit, lookupErr := a.repo.LookupCommit(hash)
		if lookupErr != nil {
			a.skipAndLog(hash, lookupErr)

			continue
		}

		matched := compiled.matchesCommit(commit)
		commit.Free()

		if !matched {
			continue
		}

		count++

		if filter.MaxCount > 0 && count >= filter.MaxCount {
			return count, nil
		}
	}
}

// FileHistory returns the commits touching the exact path, newest first.
// A path no commit ever touched yields an empty slice, not an error.
func (a *Analyzer) FileHistory(ctx context.Context, path string, maxCount int) ([]Commit, error) {
	return a.Commits(ctx, Filter{FilePath: path, MaxCount: maxCount})
}

// CommitDetails resolves a revision and returns its record with per-file
// changes.
func (a *Analyzer) CommitDetails(ctx context.Context, rev string) (*Commit, []FileChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	commit, err := a.repo.RevparseCommit(rev)
	if err != nil {
		return nil, nil, err
	}
	defer commit.Free()

	files, filesErr := a.commitChanges(commit)
	if filesErr != nil {
		return nil, nil, filesErr
	}

	record := commitRecord(commit, files)

	return &record, files, nil
}
