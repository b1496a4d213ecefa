package analysis

import (
	"context"
	"path/filepath"

	"github.com/src-d/enry/v2"

	"github.com/githound/githound/pkg/identity"
)

// AuthorStatistics folds the filtered history into per-author aggregates,
// keyed by the normalized identity key. files_modified counts distinct
// paths across all of an author's commits.
func (a *Analyzer) AuthorStatistics(ctx context.Context, filter Filter) (map[string]*AuthorStatistics, error) {
	stats := make(map[string]*AuthorStatistics)
	touched := make(map[string]map[string]struct{})

	err := a.Walk(ctx, filter, func(c Commit, files []FileChange) error {
		key := identity.Key(c.Author, c.AuthorEmail)

		entry, ok := stats[key]
		if !ok {
			entry = &AuthorStatistics{
				Name:      identity.DisplayName(c.Author, c.AuthorEmail),
				Email:     c.AuthorEmail,
				Languages: make(map[string]int),
			}
			stats[key] = entry
			touched[key] = make(map[string]struct{})
		}

		entry.CommitCount++
		entry.Insertions += c.Insertions
		entry.Deletions += c.Deletions

		for _, fc := range files {
			touched[key][fc.FilePath] = struct{}{}

			lang := enry.GetLanguage(filepath.Base(fc.FilePath), nil)
			if lang != "" && fc.Insertions > 0 {
				entry.Languages[lang] += fc.Insertions
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for key, entry := range stats {
		entry.FilesModified = len(touched[key])

		if len(entry.Languages) == 0 {
			entry.Languages = nil
		}
	}

	return stats, nil
}
