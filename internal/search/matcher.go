package search

import (
	"regexp"
	"strings"

	"github.com/githound/githound/pkg/levenshtein"
)

// lineMatcher decides whether a line matches the content pattern and with
// what relevance. Not safe for concurrent use; each run owns one.
type lineMatcher struct {
	pattern   string
	re        *regexp.Regexp
	fuzzy     bool
	threshold float64
	lev       levenshtein.Context
}

func newLineMatcher(q Query) (*lineMatcher, error) {
	m := &lineMatcher{
		pattern:   q.ContentPattern,
		fuzzy:     q.FuzzyThreshold > 0,
		threshold: q.FuzzyThreshold,
	}

	if q.UseRegex && q.ContentPattern != "" {
		re, err := regexp.Compile(q.ContentPattern)
		if err != nil {
			return nil, err
		}

		m.re = re
	}

	return m, nil
}

// match returns whether the line matches and the relevance score. Exact and
// regex matches score 1.0; fuzzy matches score their similarity.
func (m *lineMatcher) match(line string) (bool, float64) {
	if m.re != nil {
		if m.re.MatchString(line) {
			return true, 1
		}

		return false, 0
	}

	if strings.Contains(line, m.pattern) {
		return true, 1
	}

	if !m.fuzzy {
		return false, 0
	}

	score := m.similarity(line)
	if score >= m.threshold {
		return true, score
	}

	return false, 0
}

// similarity is the best normalized Levenshtein similarity between the
// pattern and the whole line or any of its whitespace-separated tokens, so
// a typo'd identifier still matches inside a longer line.
func (m *lineMatcher) similarity(line string) float64 {
	best := m.lev.Similarity(line, m.pattern)

	for _, token := range strings.Fields(line) {
		if sim := m.lev.Similarity(token, m.pattern); sim > best {
			best = sim
		}
	}

	return best
}
