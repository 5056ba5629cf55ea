package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quorum/internal/model"
)

// tableComparator returns canned pairwise scores, keyed on text in either
// order. Unknown pairs score 0.
type tableComparator struct {
	table map[[2]string]float64
}

func (tableComparator) Name() string { return "table" }

func (c tableComparator) Compare(a, b string) float64 {
	if v, ok := c.table[[2]string{a, b}]; ok {
		return v
	}
	return c.table[[2]string{b, a}]
}

func sealedRound(t *testing.T, round int, outcomes ...model.Outcome) *model.RoundResult {
	t.Helper()
	roster := make([]model.Backend, len(outcomes))
	for i, o := range outcomes {
		roster[i] = model.Backend{ID: o.BackendID}
	}
	q := model.NewQuestion("q", round)
	rr := model.NewRoundResult(q, roster)
	for _, o := range outcomes {
		rr.Record(o)
	}
	require.NoError(t, rr.Seal())
	return rr
}

func success(id, text string) model.Outcome {
	return model.Outcome{BackendID: id, Response: &model.Response{BackendID: id, Text: text}}
}

func timeout(id string) model.Outcome {
	return model.Outcome{BackendID: id, Failure: &model.Failure{BackendID: id, Kind: model.FailureTimeout}}
}

func deltaFor(t *testing.T, deltas []model.ScoreDelta, id string) model.ScoreDelta {
	t.Helper()
	for _, d := range deltas {
		if d.BackendID == id {
			return d
		}
	}
	t.Fatalf("no delta for backend %s", id)
	return model.ScoreDelta{}
}

func TestScore_InsufficientData_SingleSuccess(t *testing.T) {
	e := NewEngine(LexicalComparator{}, DefaultConfig())
	rr := sealedRound(t, 1,
		success("a", "the only answer"),
		timeout("b"),
		timeout("c"),
	)

	deltas := e.Score(rr)
	require.Len(t, deltas, 3)

	da := deltaFor(t, deltas, "a")
	assert.Zero(t, da.Delta)
	assert.Equal(t, model.RationaleInsufficientData, da.Rationale)

	for _, id := range []string{"b", "c"} {
		d := deltaFor(t, deltas, id)
		assert.Equal(t, -0.25, d.Delta)
		assert.Equal(t, model.RationaleNoResponse, d.Rationale)
	}
}

func TestScore_AllFailed_RoundStillScored(t *testing.T) {
	e := NewEngine(LexicalComparator{}, DefaultConfig())
	rr := sealedRound(t, 1, timeout("a"), timeout("b"))

	deltas := e.Score(rr)
	require.Len(t, deltas, 2)
	for _, d := range deltas {
		assert.Equal(t, -0.25, d.Delta)
		assert.Equal(t, model.RationaleNoResponse, d.Rationale)
	}
}

// Reference scenario: A and B answer near-identically, C times out.
// Two successes means no quartile spread: A and B get zero, C gets the
// fixed participation penalty.
func TestScore_TwoSuccessesAgree_ZeroNetDelta(t *testing.T) {
	e := NewEngine(LexicalComparator{}, DefaultConfig())
	rr := sealedRound(t, 1,
		success("a", "Paris is the capital of France."),
		success("b", "The capital of France is Paris."),
		timeout("c"),
	)

	deltas := e.Score(rr)
	require.Len(t, deltas, 3)

	for _, id := range []string{"a", "b"} {
		d := deltaFor(t, deltas, id)
		assert.Zero(t, d.Delta, id)
		assert.Equal(t, model.RationaleAgreedWithMajority, d.Rationale)
	}

	dc := deltaFor(t, deltas, "c")
	assert.Equal(t, -0.25, dc.Delta)
	assert.Equal(t, model.RationaleNoResponse, dc.Rationale)

	// The participation penalty stays smaller than any divergence penalty
	// the bottom quartile can receive at this threshold.
	cfg := DefaultConfig()
	assert.Less(t, cfg.ParticipationPenalty, cfg.PenaltyScale*(1-cfg.DivergenceThreshold))
}

func TestScore_TwoSuccessesDiverge_BothPenalized(t *testing.T) {
	cmp := tableComparator{table: map[[2]string]float64{
		{"yes", "no"}: 0.0,
	}}
	e := NewEngine(cmp, DefaultConfig())
	rr := sealedRound(t, 1, success("a", "yes"), success("b", "no"))

	deltas := e.Score(rr)
	for _, d := range deltas {
		assert.InDelta(t, -2.0, d.Delta, 1e-9)
		assert.Equal(t, model.RationaleOutlier, d.Rationale)
	}
}

func TestScore_Quartiles(t *testing.T) {
	cmp := tableComparator{table: map[[2]string]float64{
		{"ta", "tb"}: 1.0,
		{"ta", "tc"}: 0.8,
		{"ta", "td"}: 0.0,
		{"tb", "tc"}: 0.9,
		{"tb", "td"}: 0.1,
		{"tc", "td"}: 0.05,
	}}
	e := NewEngine(cmp, DefaultConfig())
	rr := sealedRound(t, 3,
		success("a", "ta"),
		success("b", "tb"),
		success("c", "tc"),
		success("d", "td"),
	)

	deltas := e.Score(rr)
	require.Len(t, deltas, 4)

	// Alignments: a=0.6, b=0.6667, c=0.5833, d=0.05.
	db := deltaFor(t, deltas, "b")
	assert.InDelta(t, 2.0*(2.0/3.0), db.Delta, 1e-9)
	assert.Equal(t, model.RationaleAgreedWithMajority, db.Rationale)

	dd := deltaFor(t, deltas, "d")
	assert.InDelta(t, -2.0*0.95, dd.Delta, 1e-9)
	assert.Equal(t, model.RationaleOutlier, dd.Rationale)

	for _, id := range []string{"a", "c"} {
		d := deltaFor(t, deltas, id)
		assert.Zero(t, d.Delta, id)
		assert.Equal(t, model.RationaleMiddleOfPack, d.Rationale)
	}

	// Output follows roster order.
	assert.Equal(t, "a", deltas[0].BackendID)
	assert.Equal(t, "d", deltas[3].BackendID)
}

func TestScore_TieBreakByBackendID(t *testing.T) {
	// All pairwise scores equal: quartile membership is decided purely by
	// lexicographic backend id.
	cmp := tableComparator{table: map[[2]string]float64{
		{"tm", "ta"}: 0.5,
		{"tm", "tz"}: 0.5,
		{"ta", "tz"}: 0.5,
	}}
	e := NewEngine(cmp, DefaultConfig())
	rr := sealedRound(t, 1,
		success("m", "tm"),
		success("a", "ta"),
		success("z", "tz"),
	)

	deltas := e.Score(rr)
	assert.InDelta(t, 1.0, deltaFor(t, deltas, "a").Delta, 1e-9)
	assert.Zero(t, deltaFor(t, deltas, "m").Delta)
	assert.InDelta(t, -1.0, deltaFor(t, deltas, "z").Delta, 1e-9)
}

func TestScore_Deterministic(t *testing.T) {
	e := NewEngine(LexicalComparator{}, DefaultConfig())
	rr := sealedRound(t, 7,
		success("a", "the answer is four"),
		success("b", "four is the answer"),
		success("c", "it is four"),
		success("d", "probably seventeen"),
		timeout("e"),
	)

	first := e.Score(rr)
	for range 10 {
		assert.Equal(t, first, e.Score(rr))
	}
}

func TestScore_OneDeltaPerEntry(t *testing.T) {
	e := NewEngine(LexicalComparator{}, DefaultConfig())
	rr := sealedRound(t, 1,
		success("a", "x"),
		timeout("b"),
		success("c", "y"),
		timeout("d"),
	)

	deltas := e.Score(rr)
	require.Len(t, deltas, 4)
	seen := map[string]bool{}
	for _, d := range deltas {
		assert.False(t, seen[d.BackendID], "duplicate delta for %s", d.BackendID)
		seen[d.BackendID] = true
		assert.Equal(t, 1, d.Round)
	}
}
