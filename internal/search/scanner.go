package search

import (
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/githound/githound/pkg/gitlib"
)

// blobCacheSize bounds the number of blob line sets kept in memory; the
// same blob recurs across many commits in a typical history walk.
const blobCacheSize = 1024

// blobScanner loads blob content as lines, caching by blob hash. Binary
// blobs yield nil lines; unreadable blobs are skipped with a warning.
type blobScanner struct {
	repo  *gitlib.Repository
	cache *lru.Cache[string, []string]
	log   *slog.Logger
}

func newBlobScanner(repo *gitlib.Repository, logger *slog.Logger) (*blobScanner, error) {
	cache, err := lru.New[string, []string](blobCacheSize)
	if err != nil {
		return nil, err
	}

	return &blobScanner{repo: repo, cache: cache, log: logger}, nil
}

// lines returns the text lines of a blob. ok is false when the blob could
// not be read; binary blobs return (nil, true) so callers skip them quietly.
func (s *blobScanner) lines(hash gitlib.Hash) ([]string, bool) {
	key := hash.String()

	if cached, hit := s.cache.Get(key); hit {
		return cached, true
	}

	blob, err := s.repo.LookupBlob(hash)
	if err != nil {
		s.log.Warn("skipping unreadable blob",
			slog.String("blob", hash.Short()),
			slog.Any("error", err))

		return nil, false
	}
	defer blob.Free()

	var lines []string

	if !blob.IsBinary() {
		lines = splitContent(string(blob.Contents()))
	}

	s.cache.Add(key, lines)

	return lines, true
}

// splitContent splits blob content into physical lines; a trailing newline
// does not produce a phantom empty line.
func splitContent(content string) []string {
	if content == "" {
		return nil
	}

	content = strings.TrimSuffix(content, "\n")

	return strings.Split(content, "\n")
}
