package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	cmp, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "lexical", cmp.Name())

	cmp, err = ByName("cosine")
	require.NoError(t, err)
	assert.Equal(t, "cosine", cmp.Name())

	_, err = ByName("semantic-embeddings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown comparator")
}

func TestLexicalComparator(t *testing.T) {
	cmp := LexicalComparator{}

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "The sky is blue", "The sky is blue", 1.0},
		{"case_and_punct_insensitive", "The sky is BLUE!", "the sky, is blue", 1.0},
		{"disjoint", "apples oranges", "cars trucks", 0.0},
		{"both_empty", "", "", 1.0},
		{"one_empty", "something", "", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cmp.Compare(tt.a, tt.b), 1e-9)
		})
	}
}

func TestLexicalComparator_PartialOverlap(t *testing.T) {
	cmp := LexicalComparator{}
	// {paris, is, the, capital} vs {paris, capital, city}:
	// intersection 2 (paris, capital), union 5.
	got := cmp.Compare("Paris is the capital", "Paris capital city")
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestComparators_Symmetric(t *testing.T) {
	a := "Water boils at 100 degrees Celsius at sea level."
	b := "At sea level, water boils at 100C."
	for _, cmp := range []Comparator{LexicalComparator{}, CosineComparator{}} {
		assert.InDelta(t, cmp.Compare(a, b), cmp.Compare(b, a), 1e-9, cmp.Name())
	}
}

func TestCosineComparator(t *testing.T) {
	cmp := CosineComparator{}

	assert.InDelta(t, 1.0, cmp.Compare("yes yes yes", "yes"), 1e-9)
	assert.InDelta(t, 0.0, cmp.Compare("alpha beta", "gamma delta"), 1e-9)
	assert.InDelta(t, 1.0, cmp.Compare("", ""), 1e-9)
	assert.InDelta(t, 0.0, cmp.Compare("a", ""), 1e-9)

	near := cmp.Compare("Paris is the capital of France", "The capital of France is Paris")
	assert.Greater(t, near, 0.9)
}
