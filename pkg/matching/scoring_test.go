package matching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{"identical", "acme", "acme", 0},
		{"empty vs empty", "", "", 0},
		{"empty vs word", "", "acme", 4},
		{"word vs empty", "acme", "", 4},
		{"single substitution", "kitten", "sitten", 1},
		{"classic kitten sitting", "kitten", "sitting", 3},
		{"insertion", "acme", "acmes", 1},
		{"deletion", "acmes", "acme", 1},
		{"completely different", "abc", "xyz", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scorer.LevenshteinDistance(tt.a, tt.b))
		})
	}
}

func TestLevenshteinDistance_Symmetric(t *testing.T) {
	scorer := NewScorer()

	pairs := [][2]string{
		{"kitten", "sitting"},
		{"acme widgets", "acme widget"},
		{"", "nonempty"},
	}

	for _, p := range pairs {
		assert.Equal(t, scorer.LevenshteinDistance(p[0], p[1]), scorer.LevenshteinDistance(p[1], p[0]))
	}
}

func TestSimilarity(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{"identical", "acme", "acme", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "", "acme", 0.0},
		{"half different", "ab", "ax", 0.5},
		{"no overlap", "abc", "xyz", 0.0},
		{"one edit in ten", "0123456789", "012345678x", 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	scorer := NewScorer()

	pairs := [][2]string{
		{"acme", "acme widgets incorporated"},
		{"a", "zzzzzzzzzz"},
		{"", "x"},
		{"same", "same"},
	}

	for _, p := range pairs {
		score := scorer.Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestSimilarity_TruncatesLongInputs(t *testing.T) {
	scorer := NewScorer()

	// Identical prefixes up to the cap; differences past it are invisible.
	a := strings.Repeat("a", maxCompareLength) + strings.Repeat("x", 1000)
	b := strings.Repeat("a", maxCompareLength) + strings.Repeat("y", 1000)

	assert.Equal(t, 1.0, scorer.Similarity(a, b))
}
