package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quorum/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS rounds`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	summary := sampleSummary(1, "q-1")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rounds`).
		WithArgs(pgxmock.AnyArg(), "sess-1", 1, "q-1", "what is 2+2?", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO deltas`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "sess-1", 1, "a", 0.0, model.RationaleInsufficientData).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO deltas`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "sess-1", 1, "b", -0.25, model.RationaleNoResponse).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.RecordRound(context.Background(), "sess-1", summary)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRound_DuplicateRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rounds`).
		WithArgs(pgxmock.AnyArg(), "sess-1", 1, "q-1", "what is 2+2?", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.RecordRound(context.Background(), "sess-1", sampleSummary(1, "q-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert round")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	outcomes := []byte(`[{"backend_id":"a","response":{"backend_id":"a","question_id":"q-1","text":"4"}}]`)
	mock.ExpectQuery(`SELECT id, session_id, round, question_id, question, outcomes, created_at FROM rounds WHERE question_id = \$1`).
		WithArgs("q-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "round", "question_id", "question", "outcomes", "created_at"}).
			AddRow("r-1", "sess-1", 1, "q-1", "what is 2+2?", outcomes, time.Now().UTC()))

	rec, err := s.GetRound(context.Background(), "q-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sess-1", rec.SessionID)
	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, "4", rec.Outcomes[0].Response.Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRound_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, session_id, round, question_id, question, outcomes, created_at FROM rounds`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetRound(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Leaderboard(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT backend_id`).
		WithArgs(model.RationaleNoResponse, "sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"backend_id", "sum", "count", "failed"}).
			AddRow("a", 2.75, 2, 1).
			AddRow("b", 1.0, 2, 0))

	board, err := s.Leaderboard(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "a", board[0].BackendID)
	assert.InDelta(t, 2.75, board[0].Score, 1e-9)
	assert.Equal(t, 1, board[0].FailedRounds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT session_id, round, backend_id, delta, rationale`).
		WithArgs("a", "").
		WillReturnRows(pgxmock.NewRows([]string{"session_id", "round", "backend_id", "delta", "rationale"}).
			AddRow("sess-1", 1, "a", 2.0, model.RationaleAgreedWithMajority).
			AddRow("sess-1", 2, "a", -1.0, model.RationaleOutlier))

	hist, err := s.History(context.Background(), "", "a")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 1, hist[0].Round)
	assert.Equal(t, model.RationaleOutlier, hist[1].Rationale)
	assert.NoError(t, mock.ExpectationsWereMet())
}
