// Package store persists completed rounds and their deltas so reputation
// survives across sessions for audit. The engine never depends on it; the
// session feeds it through the RoundSink hook.
package store

import (
	"context"
	"time"

	"github.com/sells-group/quorum/internal/model"
)

// RoundRecord is one persisted round.
type RoundRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Round      int             `json:"round"`
	QuestionID string          `json:"question_id"`
	Question   string          `json:"question"`
	Outcomes   []model.Outcome `json:"outcomes"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DeltaRecord is one persisted score delta.
type DeltaRecord struct {
	SessionID string  `json:"session_id"`
	Round     int     `json:"round"`
	BackendID string  `json:"backend_id"`
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

// Store defines the persistence interface for round results and deltas.
type Store interface {
	// RecordRound persists one summary atomically: the round row plus one
	// delta row per backend.
	RecordRound(ctx context.Context, sessionID string, summary *model.RoundSummary) error

	// GetRound fetches one round by question id.
	GetRound(ctx context.Context, questionID string) (*RoundRecord, error)

	// ListRounds returns the most recent rounds for a session, newest first.
	ListRounds(ctx context.Context, sessionID string, limit int) ([]RoundRecord, error)

	// Leaderboard aggregates persisted deltas into reputation entries,
	// ordered by cumulative score descending then backend id. Empty
	// sessionID aggregates across all sessions.
	Leaderboard(ctx context.Context, sessionID string) ([]model.ReputationEntry, error)

	// History returns a backend's deltas in round order. Empty sessionID
	// spans all sessions.
	History(ctx context.Context, sessionID, backendID string) ([]DeltaRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
