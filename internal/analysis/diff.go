package analysis

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"

	"github.com/githound/githound/pkg/gitlib"
)

// DiffOptions configures commit and branch diffs.
type DiffOptions struct {
	// FilePatterns is a glob allow-list. When set, only matching paths
	// appear in the result and the aggregate counts cover only those files.
	FilePatterns []string

	// ContextLines controls unified-patch context only; it never changes
	// which files are reported.
	ContextLines int

	// IncludePatch attaches per-file unified patch text.
	IncludePatch bool
}

// DiffCommits diffs two revisions. Either endpoint failing to resolve
// yields [ErrInvalidRevision].
func (a *Analyzer) DiffCommits(ctx context.Context, from, to string, opts DiffOptions) (*DiffResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keep, err := compileAllowList(opts.FilePatterns)
	if err != nil {
		return nil, err
	}

	fromCommit, err := a.repo.RevparseCommit(from)
	if err != nil {
		return nil, err
	}
	defer fromCommit.Free()

	toCommit, err := a.repo.RevparseCommit(to)
	if err != nil {
		return nil, err
	}
	defer toCommit.Free()

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, err
	}
	defer fromTree.Free()

	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, err
	}
	defer toTree.Free()

	diff, err := a.repo.DiffTreeToTree(fromTree, toTree, &gitlib.DiffOptions{
		ContextLines:  opts.ContextLines,
		DetectRenames: true,
	})
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	files, filesErr := collectFileChanges(diff, keep, opts.IncludePatch)
	if filesErr != nil {
		return nil, filesErr
	}

	result := &DiffResult{FileDiffs: files, FilesChanged: len(files)}

	for _, fc := range files {
		result.Insertions += fc.Insertions
		result.Deletions += fc.Deletions
	}

	return result, nil
}

// DiffBranches diffs the tips of two branches. Same shape as DiffCommits.
func (a *Analyzer) DiffBranches(ctx context.Context, fromBranch, toBranch string, opts DiffOptions) (*DiffResult, error) {
	return a.DiffCommits(ctx, fromBranch, toBranch, opts)
}

// compileAllowList builds the file-pattern filter, nil when no patterns are
// given. A path passes when any pattern matches it.
func compileAllowList(patterns []string) (matchFunc, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	globs := make([]glob.Glob, 0, len(patterns))

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: file pattern %q: %v", ErrInvalidFilter, pattern, err)
		}

		globs = append(globs, g)
	}

	return func(path string) bool {
		for _, g := range globs {
			if g.Match(path) {
				return true
			}
		}

		return false
	}, nil
}
