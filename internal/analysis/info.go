package analysis

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/githound/githound/pkg/identity"
)

// RepositoryInfo summarizes the repository: commit and author totals over
// the full HEAD history, tracked file count at HEAD, branches and tags.
// Recomputed on every call; the repository is a live external store.
func (a *Analyzer) RepositoryInfo(ctx context.Context) (*RepositoryInfo, error) {
	info := &RepositoryInfo{
		Name: a.repo.Name(),
		Path: a.repo.Path(),
	}

	branches, err := a.repo.Branches()
	if err != nil {
		return nil, err
	}

	info.Branches = branches

	tags, err := a.repo.Tags()
	if err != nil {
		return nil, err
	}

	info.Tags = tags

	if err := a.countHistory(ctx, info); err != nil {
		return nil, err
	}

	head, headErr := a.repo.HeadCommit()
	if headErr != nil {
		return nil, headErr
	}
	defer head.Free()

	tree, treeErr := head.Tree()
	if treeErr != nil {
		return nil, treeErr
	}
	defer tree.Free()

	files, filesErr := tree.Files()
	if filesErr != nil {
		return nil, filesErr
	}

	info.TotalFiles = len(files)

	return info, nil
}

// countHistory walks the full HEAD history once, counting commits, distinct
// authors and the first/last commit dates. Unreadable commits are skipped
// the same way the filtered walker skips them.
func (a *Analyzer) countHistory(ctx context.Context, info *RepositoryInfo) error {
	walk, err := a.repo.Walk()
	if err != nil {
		return err
	}
	defer walk.Free()

	if err := walk.PushHead(); err != nil {
		return err
	}

	authors := make(map[string]struct{})

	var first, last *time.Time

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		hash, nextErr := walk.NextHash()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return nextErr
		}

		commit, lookupErr := a.repo.LookupCommit(hash)
		if lookupErr != nil {
			a.skipAndLog(hash, lookupErr)

			continue
		}

		author := commit.Author()
		commit.Free()

		info.TotalCommits++
		authors[identity.Key(author.Name, author.Email)] = struct{}{}

		when := author.When
		if first == nil || when.Before(*first) {
			first = &when
		}

		if last == nil || when.After(*last) {
			last = &when
		}
	}

	info.TotalAuthors = len(authors)
	info.FirstCommitDate = first
	info.LastCommitDate = last

	return nil
}
