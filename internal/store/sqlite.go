package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/quorum/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS rounds (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	round       INTEGER NOT NULL,
	question_id TEXT NOT NULL UNIQUE,
	question    TEXT NOT NULL,
	outcomes    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS deltas (
	id         TEXT PRIMARY KEY,
	round_id   TEXT NOT NULL REFERENCES rounds(id),
	session_id TEXT NOT NULL,
	round      INTEGER NOT NULL,
	backend_id TEXT NOT NULL,
	delta      REAL NOT NULL,
	rationale  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, round);
CREATE INDEX IF NOT EXISTS idx_deltas_backend ON deltas(backend_id, round);
CREATE INDEX IF NOT EXISTS idx_deltas_session ON deltas(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRound(ctx context.Context, sessionID string, summary *model.RoundSummary) error {
	outcomesJSON, err := json.Marshal(summary.Outcomes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal outcomes")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	roundID := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (id, session_id, round, question_id, question, outcomes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		roundID, sessionID, summary.Round, summary.QuestionID, summary.Question, string(outcomesJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert round")
	}

	for _, d := range summary.Deltas {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO deltas (id, round_id, session_id, round, backend_id, delta, rationale) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), roundID, sessionID, d.Round, d.BackendID, d.Delta, d.Rationale,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert delta")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit round")
}

func (s *SQLiteStore) GetRound(ctx context.Context, questionID string) (*RoundRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, round, question_id, question, outcomes, created_at FROM rounds WHERE question_id = ?`,
		questionID,
	)
	rec, err := scanRound(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get round")
	}
	return rec, nil
}

func (s *SQLiteStore) ListRounds(ctx context.Context, sessionID string, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, round, question_id, question, outcomes, created_at
		 FROM rounds WHERE (? = '' OR session_id = ?) ORDER BY created_at DESC LIMIT ?`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rounds")
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan round")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rounds")
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, sessionID string) ([]model.ReputationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT backend_id,
		        SUM(delta),
		        COUNT(*),
		        SUM(CASE WHEN rationale = ? THEN 1 ELSE 0 END)
		 FROM deltas
		 WHERE (? = '' OR session_id = ?)
		 GROUP BY backend_id
		 ORDER BY SUM(delta) DESC, backend_id ASC`,
		model.RationaleNoResponse, sessionID, sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: leaderboard")
	}
	defer rows.Close()

	var out []model.ReputationEntry
	for rows.Next() {
		var e model.ReputationEntry
		if err := rows.Scan(&e.BackendID, &e.Score, &e.Rounds, &e.FailedRounds); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan leaderboard")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: leaderboard")
}

func (s *SQLiteStore) History(ctx context.Context, sessionID, backendID string) ([]DeltaRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, round, backend_id, delta, rationale
		 FROM deltas
		 WHERE backend_id = ? AND (? = '' OR session_id = ?)
		 ORDER BY round ASC`,
		backendID, sessionID, sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: history")
	}
	defer rows.Close()

	var out []DeltaRecord
	for rows.Next() {
		var d DeltaRecord
		if err := rows.Scan(&d.SessionID, &d.Round, &d.BackendID, &d.Delta, &d.Rationale); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: history")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRound(row scanner) (*RoundRecord, error) {
	var rec RoundRecord
	var outcomesJSON string
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.Round, &rec.QuestionID, &rec.Question, &outcomesJSON, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outcomesJSON), &rec.Outcomes); err != nil {
		return nil, eris.Wrap(err, "unmarshal outcomes")
	}
	return &rec, nil
}
