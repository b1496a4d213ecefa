// Package search implements the multi-modal search orchestrator: exact,
// regex and fuzzy content search across commit history, with progress
// reporting, cancellation and background execution.
package search

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Typed errors surfaced by the orchestrator.
var (
	// ErrInvalidQuery is returned when a query fails boundary validation.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrSearchTimeout is returned when a search exceeds its timeout.
	ErrSearchTimeout = errors.New("search timed out")
	// ErrCancelled is returned internally when a background search is
	// cancelled between commits.
	ErrCancelled = errors.New("search cancelled")
)

// SearchType classifies how a result matched.
type SearchType string

// Result classifications. Content matches in commits older than the newest
// matched commit are reported as historical.
const (
	TypeContent       SearchType = "content"
	TypeFuzzy         SearchType = "fuzzy"
	TypeCommitMessage SearchType = "commit-message"
	TypeAuthor        SearchType = "author"
	TypeHistorical    SearchType = "historical"
)

// Query describes one search request. Validated once at the boundary.
type Query struct {
	// ContentPattern is the text to find. Interpreted as a regular
	// expression when UseRegex is set.
	ContentPattern string

	// UseRegex treats ContentPattern as a regular expression.
	UseRegex bool

	// FuzzyThreshold in (0,1] enables fuzzy matching: a line matches when
	// its normalized Levenshtein similarity reaches the threshold. Zero
	// disables fuzzy matching.
	FuzzyThreshold float64

	// AuthorPattern and MessagePattern narrow the commits scanned, with
	// the same substring-or-glob semantics as history filters.
	AuthorPattern  string
	MessagePattern string

	// Since and Until bound the commit date, both inclusive.
	Since *time.Time
	Until *time.Time

	// FileExtensions is an allow-list of extensions ("go" or ".go").
	FileExtensions []string

	// MaxResults caps the returned results; has_more reports overflow.
	// Zero means unlimited.
	MaxResults int

	// MaxCommits bounds how many commits are scanned. Zero means all.
	MaxCommits int

	// IncludeContext attaches surrounding lines to each match.
	IncludeContext bool

	// ContextLines is the number of lines either side of a match when
	// IncludeContext is set. Zero means 3.
	ContextLines int

	// Timeout fails the search when exceeded. Zero means no timeout.
	Timeout time.Duration
}

// Validate checks the query once at the boundary.
func (q Query) Validate() error {
	if q.ContentPattern == "" && q.MessagePattern == "" && q.AuthorPattern == "" {
		return fmt.Errorf("%w: no pattern given", ErrInvalidQuery)
	}

	if q.FuzzyThreshold < 0 || q.FuzzyThreshold > 1 {
		return fmt.Errorf("%w: fuzzy threshold %v outside [0, 1]", ErrInvalidQuery, q.FuzzyThreshold)
	}

	if q.MaxResults < 0 || q.MaxCommits < 0 || q.ContextLines < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}

	if q.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidQuery)
	}

	if q.UseRegex && q.ContentPattern != "" {
		if _, err := regexp.Compile(q.ContentPattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}

	return nil
}

// contextLines resolves the default context width.
func (q Query) contextLines() int {
	if q.ContextLines > 0 {
		return q.ContextLines
	}

	return 3
}

// extensionSet normalizes the allow-list to ".ext" form. Nil means all
// extensions pass.
func (q Query) extensionSet() map[string]struct{} {
	if len(q.FileExtensions) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(q.FileExtensions))

	for _, ext := range q.FileExtensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		set[strings.ToLower(ext)] = struct{}{}
	}

	return set
}

// Result is one search match.
type Result struct {
	CommitHash     string     `json:"commit_hash"`
	FilePath       string     `json:"file_path,omitempty"`
	LineNumber     int        `json:"line_number,omitempty"`
	MatchingLine   string     `json:"matching_line"`
	SearchType     SearchType `json:"search_type"`
	RelevanceScore float64    `json:"relevance_score"`
	MatchContext   []string   `json:"match_context,omitempty"`

	// when orders ties by commit recency; not part of the wire shape.
	when time.Time
}

// Outcome is the completed result set of one search.
type Outcome struct {
	Results          []Result `json:"results"`
	TotalMatches     int      `json:"total_matches"`
	HasMore          bool     `json:"has_more"`
	CommitsProcessed int      `json:"commits_processed"`
}
