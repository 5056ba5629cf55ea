package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Comparator reports pairwise agreement between two free-text answers on a
// 0.0 (unrelated) to 1.0 (equivalent) scale. Implementations must be pure:
// the engine's determinism guarantee depends on it.
type Comparator interface {
	Name() string
	Compare(a, b string) float64
}

// ByName returns the comparator registered under name.
func ByName(name string) (Comparator, error) {
	switch name {
	case "", "lexical":
		return LexicalComparator{}, nil
	case "cosine":
		return CosineComparator{}, nil
	default:
		return nil, eris.Errorf("scoring: unknown comparator %q", name)
	}
}

// tokenize lowercases via Unicode case folding and splits on anything that
// is not a letter or digit. A Caser is stateful, so each call gets its own.
func tokenize(s string) []string {
	folded := cases.Fold().String(s)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// LexicalComparator measures token-set Jaccard overlap. Cheap, symmetric,
// and good enough to separate near-identical answers from contradictions.
type LexicalComparator struct{}

func (LexicalComparator) Name() string { return "lexical" }

func (LexicalComparator) Compare(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, tok := range ta {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		setB[tok] = struct{}{}
	}

	var intersection int
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// CosineComparator measures term-frequency cosine similarity, which weighs
// repeated terms and is less sensitive to answer length than Jaccard.
type CosineComparator struct{}

func (CosineComparator) Name() string { return "cosine" }

func (CosineComparator) Compare(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	freqA := termFreq(ta)
	freqB := termFreq(tb)

	var dot float64
	for tok, fa := range freqA {
		if fb, ok := freqB[tok]; ok {
			dot += float64(fa) * float64(fb)
		}
	}
	if dot == 0 {
		return 0.0
	}
	return dot / (norm(freqA) * norm(freqB))
}

func termFreq(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	return freq
}

func norm(freq map[string]int) float64 {
	var sum float64
	for _, f := range freq {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}
