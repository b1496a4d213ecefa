package levenshtein

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	ctx := &Context{}

	cases := []struct {
		s1, s2 string
		want   int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"gumbo", "gambol", 2},
		{"identical", "identical", 0},
		{"résumé", "resume", 2},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ctx.Distance(tc.s1, tc.s2), "%q vs %q", tc.s1, tc.s2)
	}
}

func TestDistanceLongStrings(t *testing.T) {
	ctx := &Context{}

	long1 := ""
	long2 := ""

	for range 10 {
		long1 += "abcdefghij"
		long2 += "abcdefghix"
	}

	// One substitution per 10-character block.
	assert.Equal(t, 10, ctx.Distance(long1, long2))
}

func TestDistanceMyersMatchesDP(t *testing.T) {
	ctx := &Context{}

	cases := [][2]string{
		{"search", "serach"},
		{"refactor", "refactoring"},
		{"fix bug", "fixed bugs"},
		{"hello world", "hello wrold"},
	}

	for _, tc := range cases {
		s1 := []rune(tc[0])
		s2 := []rune(tc[1])
		assert.Equal(t, ctx.distanceDP(s1, s2), ctx.distanceMyers64(s1, s2), "%q vs %q", tc[0], tc[1])
	}
}

func TestSimilarity(t *testing.T) {
	ctx := &Context{}

	assert.Equal(t, 1.0, ctx.Similarity("same", "same"))
	assert.Equal(t, 1.0, ctx.Similarity("", ""))
	assert.Equal(t, 0.0, ctx.Similarity("abc", "xyz"))
	assert.InDelta(t, 0.5, ctx.Similarity("ab", "ax"), 1e-9)

	sim := ctx.Similarity("kitten", "sitting")
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}
