package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoster() []Backend {
	return []Backend{
		{ID: "alpha", Kind: BackendKindChat},
		{ID: "beta", Kind: BackendKindChat},
		{ID: "gamma", Kind: BackendKindClaude},
	}
}

func TestRoundResult_SealRequiresAllOutcomes(t *testing.T) {
	q := NewQuestion("is the sky blue?", 1)
	rr := NewRoundResult(q, testRoster())

	rr.Record(Outcome{BackendID: "alpha", Response: &Response{BackendID: "alpha", QuestionID: q.ID, Text: "yes"}})
	rr.Record(Outcome{BackendID: "beta", Failure: &Failure{BackendID: "beta", QuestionID: q.ID, Kind: FailureTimeout}})

	err := rr.Seal()
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrIncompleteRound))
	assert.False(t, rr.Sealed())

	rr.Record(Outcome{BackendID: "gamma", Failure: &Failure{BackendID: "gamma", QuestionID: q.ID, Kind: FailureTransport}})
	require.NoError(t, rr.Seal())
	assert.True(t, rr.Sealed())
}

func TestRoundResult_FirstOutcomeWins(t *testing.T) {
	q := NewQuestion("q", 1)
	rr := NewRoundResult(q, testRoster())

	rr.Record(Outcome{BackendID: "alpha", Response: &Response{BackendID: "alpha", Text: "first"}})
	rr.Record(Outcome{BackendID: "alpha", Response: &Response{BackendID: "alpha", Text: "second"}})

	o, ok := rr.Outcome("alpha")
	require.True(t, ok)
	assert.Equal(t, "first", o.Response.Text)
}

func TestRoundResult_OutcomesPreserveRosterOrder(t *testing.T) {
	q := NewQuestion("q", 2)
	rr := NewRoundResult(q, testRoster())

	// Record out of roster order.
	rr.Record(Outcome{BackendID: "gamma", Response: &Response{BackendID: "gamma", Text: "g"}})
	rr.Record(Outcome{BackendID: "alpha", Response: &Response{BackendID: "alpha", Text: "a"}})
	rr.Record(Outcome{BackendID: "beta", Failure: &Failure{BackendID: "beta", Kind: FailureCancelled}})
	require.NoError(t, rr.Seal())

	got := rr.Outcomes()
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].BackendID)
	assert.Equal(t, "beta", got[1].BackendID)
	assert.Equal(t, "gamma", got[2].BackendID)

	assert.Len(t, rr.Successes(), 2)
	assert.Len(t, rr.Failures(), 1)
}

func TestRoundResult_RecordAfterSealIgnored(t *testing.T) {
	q := NewQuestion("q", 1)
	rr := NewRoundResult(q, []Backend{{ID: "alpha"}})
	rr.Record(Outcome{BackendID: "alpha", Response: &Response{BackendID: "alpha", Text: "a"}})
	require.NoError(t, rr.Seal())

	rr.Record(Outcome{BackendID: "alpha", Response: &Response{BackendID: "alpha", Text: "late"}})
	o, _ := rr.Outcome("alpha")
	assert.Equal(t, "a", o.Response.Text)
}

func TestFailureKind_Transient(t *testing.T) {
	assert.True(t, FailureTransport.Transient())
	assert.True(t, FailureRateLimited.Transient())
	assert.False(t, FailureTimeout.Transient())
	assert.False(t, FailureMalformed.Transient())
	assert.False(t, FailureCancelled.Transient())
}
