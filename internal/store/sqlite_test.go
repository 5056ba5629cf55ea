package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quorum/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSummary(round int, questionID string) *model.RoundSummary {
	return &model.RoundSummary{
		Round:      round,
		QuestionID: questionID,
		Question:   "what is 2+2?",
		Outcomes: []model.Outcome{
			{BackendID: "a", Response: &model.Response{BackendID: "a", QuestionID: questionID, Text: "4"}},
			{BackendID: "b", Failure: &model.Failure{BackendID: "b", QuestionID: questionID, Kind: model.FailureTimeout}},
		},
		Deltas: []model.ScoreDelta{
			{BackendID: "a", Round: round, Delta: 0, Rationale: model.RationaleInsufficientData},
			{BackendID: "b", Round: round, Delta: -0.25, Rationale: model.RationaleNoResponse},
		},
	}
}

func TestSQLite_RecordAndGetRound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRound(ctx, "sess-1", sampleSummary(1, "q-1")))

	rec, err := s.GetRound(ctx, "q-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, 1, rec.Round)
	assert.Equal(t, "what is 2+2?", rec.Question)
	require.Len(t, rec.Outcomes, 2)
	assert.True(t, rec.Outcomes[0].Success())
	assert.Equal(t, model.FailureTimeout, rec.Outcomes[1].Failure.Kind)
}

func TestSQLite_GetRound_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	rec, err := s.GetRound(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_DuplicateQuestionRejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRound(ctx, "sess-1", sampleSummary(1, "q-1")))
	err := s.RecordRound(ctx, "sess-1", sampleSummary(2, "q-1"))
	require.Error(t, err)

	// Failed insert must not leave partial delta rows behind.
	hist, err := s.History(ctx, "sess-1", "a")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestSQLite_ListRounds(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRound(ctx, "sess-1", sampleSummary(1, "q-1")))
	require.NoError(t, s.RecordRound(ctx, "sess-1", sampleSummary(2, "q-2")))
	require.NoError(t, s.RecordRound(ctx, "sess-2", sampleSummary(1, "q-3")))

	recs, err := s.ListRounds(ctx, "sess-1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	all, err := s.ListRounds(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_LeaderboardAggregation(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	sum1 := sampleSummary(1, "q-1")
	sum1.Deltas = []model.ScoreDelta{
		{BackendID: "x", Round: 1, Delta: 2, Rationale: model.RationaleAgreedWithMajority},
		{BackendID: "y", Round: 1, Delta: -0.25, Rationale: model.RationaleNoResponse},
	}
	sum2 := sampleSummary(2, "q-2")
	sum2.Deltas = []model.ScoreDelta{
		{BackendID: "x", Round: 2, Delta: -1, Rationale: model.RationaleOutlier},
		{BackendID: "y", Round: 2, Delta: 3, Rationale: model.RationaleAgreedWithMajority},
	}
	require.NoError(t, s.RecordRound(ctx, "sess-1", sum1))
	require.NoError(t, s.RecordRound(ctx, "sess-1", sum2))

	board, err := s.Leaderboard(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, board, 2)

	// y: 2.75 total, one failed round; x: 1.0.
	assert.Equal(t, "y", board[0].BackendID)
	assert.InDelta(t, 2.75, board[0].Score, 1e-9)
	assert.Equal(t, 2, board[0].Rounds)
	assert.Equal(t, 1, board[0].FailedRounds)

	assert.Equal(t, "x", board[1].BackendID)
	assert.InDelta(t, 1.0, board[1].Score, 1e-9)
	assert.Equal(t, 0, board[1].FailedRounds)
}

func TestSQLite_History(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRound(ctx, "sess-1", sampleSummary(1, "q-1")))
	require.NoError(t, s.RecordRound(ctx, "sess-1", sampleSummary(2, "q-2")))

	hist, err := s.History(ctx, "sess-1", "b")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 1, hist[0].Round)
	assert.Equal(t, 2, hist[1].Round)
	assert.Equal(t, model.RationaleNoResponse, hist[0].Rationale)

	empty, err := s.History(ctx, "sess-1", "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
