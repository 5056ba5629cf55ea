package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quorum/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS rounds (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	round       INTEGER NOT NULL,
	question_id TEXT NOT NULL UNIQUE,
	question    TEXT NOT NULL,
	outcomes    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS deltas (
	id         TEXT PRIMARY KEY,
	round_id   TEXT NOT NULL REFERENCES rounds(id),
	session_id TEXT NOT NULL,
	round      INTEGER NOT NULL,
	backend_id TEXT NOT NULL,
	delta      DOUBLE PRECISION NOT NULL,
	rationale  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, round);
CREATE INDEX IF NOT EXISTS idx_deltas_backend ON deltas(backend_id, round);
CREATE INDEX IF NOT EXISTS idx_deltas_session ON deltas(session_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordRound(ctx context.Context, sessionID string, summary *model.RoundSummary) error {
	outcomesJSON, err := json.Marshal(summary.Outcomes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal outcomes")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	roundID := uuid.New().String()
	_, err = tx.Exec(ctx,
		`INSERT INTO rounds (id, session_id, round, question_id, question, outcomes, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		roundID, sessionID, summary.Round, summary.QuestionID, summary.Question, outcomesJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert round")
	}

	for _, d := range summary.Deltas {
		_, err = tx.Exec(ctx,
			`INSERT INTO deltas (id, round_id, session_id, round, backend_id, delta, rationale) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), roundID, sessionID, d.Round, d.BackendID, d.Delta, d.Rationale,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert delta")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit round")
}

func (s *PostgresStore) GetRound(ctx context.Context, questionID string) (*RoundRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, round, question_id, question, outcomes, created_at FROM rounds WHERE question_id = $1`,
		questionID,
	)

	var rec RoundRecord
	var outcomesJSON []byte
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Round, &rec.QuestionID, &rec.Question, &outcomesJSON, &rec.CreatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get round")
	}
	if err := json.Unmarshal(outcomesJSON, &rec.Outcomes); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal outcomes")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRounds(ctx context.Context, sessionID string, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, round, question_id, question, outcomes, created_at
		 FROM rounds WHERE ($1 = '' OR session_id = $1) ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rounds")
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var rec RoundRecord
		var outcomesJSON []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Round, &rec.QuestionID, &rec.Question, &outcomesJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan round")
		}
		if err := json.Unmarshal(outcomesJSON, &rec.Outcomes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal outcomes")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rounds")
}

func (s *PostgresStore) Leaderboard(ctx context.Context, sessionID string) ([]model.ReputationEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT backend_id,
		        SUM(delta),
		        COUNT(*),
		        SUM(CASE WHEN rationale = $1 THEN 1 ELSE 0 END)
		 FROM deltas
		 WHERE ($2 = '' OR session_id = $2)
		 GROUP BY backend_id
		 ORDER BY SUM(delta) DESC, backend_id ASC`,
		model.RationaleNoResponse, sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: leaderboard")
	}
	defer rows.Close()

	var out []model.ReputationEntry
	for rows.Next() {
		var e model.ReputationEntry
		if err := rows.Scan(&e.BackendID, &e.Score, &e.Rounds, &e.FailedRounds); err != nil {
			return nil, eris.Wrap(err, "postgres: scan leaderboard")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: leaderboard")
}

func (s *PostgresStore) History(ctx context.Context, sessionID, backendID string) ([]DeltaRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, round, backend_id, delta, rationale
		 FROM deltas
		 WHERE backend_id = $1 AND ($2 = '' OR session_id = $2)
		 ORDER BY round ASC`,
		backendID, sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: history")
	}
	defer rows.Close()

	var out []DeltaRecord
	for rows.Next() {
		var d DeltaRecord
		if err := rows.Scan(&d.SessionID, &d.Round, &d.BackendID, &d.Delta, &d.Rationale); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: history")
}
