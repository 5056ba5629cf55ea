// Package session drives the interactive loop: one question per round,
// rounds scored and applied to the session-owned reputation ledger. The
// front end (CLI or HTTP) only ever sees a complete RoundSummary or a named
// error.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quorum/internal/ledger"
	"github.com/sells-group/quorum/internal/model"
)

// State is the session lifecycle position.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingQuestion State = "awaiting_question"
	StateRoundInFlight    State = "round_in_flight"
	StateRoundComplete    State = "round_complete"
	StateClosed           State = "closed"
)

// ErrSessionClosed is returned for any round attempted after Close.
var ErrSessionClosed = eris.New("session: closed")

// ErrRoundInFlight is returned when a question arrives while another round
// is still running; the session serves one round at a time.
var ErrRoundInFlight = eris.New("session: round already in flight")

// RoundRunner runs one complete round against a fixed roster.
type RoundRunner interface {
	Roster() []model.Backend
	Run(ctx context.Context, q model.Question) (*model.RoundResult, error)
}

// Scorer turns a sealed round result into per-backend deltas.
type Scorer interface {
	Score(rr *model.RoundResult) []model.ScoreDelta
}

// RoundSink receives completed round summaries for persistence. Sink
// failures are logged and never fail the round.
type RoundSink interface {
	RecordRound(ctx context.Context, sessionID string, summary *model.RoundSummary) error
}

// Session owns one reputation ledger for its lifetime and coordinates the
// question -> round -> score -> apply loop.
type Session struct {
	ID string

	runner RoundRunner
	scorer Scorer
	ledger *ledger.Ledger
	sink   RoundSink

	mu          sync.Mutex
	state       State
	rounds      int
	cancelRound context.CancelFunc
}

// New opens a session over the runner's roster. The ledger is created here
// and dies with the session.
func New(runner RoundRunner, scorer Scorer, sink RoundSink) *Session {
	return &Session{
		ID:     uuid.New().String(),
		runner: runner,
		scorer: scorer,
		ledger: ledger.New(runner.Roster()),
		sink:   sink,
		state:  StateAwaitingQuestion,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SubmitQuestion runs one full round for the given prompt and returns its
// summary with the refreshed leaderboard. Fails with ErrSessionClosed after
// Close and ErrRoundInFlight while another round runs.
func (s *Session) SubmitQuestion(ctx context.Context, text string) (*model.RoundSummary, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, eris.Wrap(ErrSessionClosed, "submit question")
	case StateRoundInFlight:
		s.mu.Unlock()
		return nil, eris.Wrap(ErrRoundInFlight, "submit question")
	}
	s.rounds++
	q := model.NewQuestion(text, s.rounds)
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRound = cancel
	s.state = StateRoundInFlight
	s.mu.Unlock()

	defer cancel()
	summary, err := s.completeRound(runCtx, q)

	s.mu.Lock()
	s.cancelRound = nil
	if s.state != StateClosed {
		// RoundComplete is transient: the session immediately awaits the
		// next question. Failed rounds leave the ledger untouched.
		s.state = StateAwaitingQuestion
	}
	s.mu.Unlock()

	return summary, err
}

func (s *Session) completeRound(ctx context.Context, q model.Question) (*model.RoundSummary, error) {
	rr, err := s.runner.Run(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "session: round %d", q.Round)
	}

	deltas := s.scorer.Score(rr)

	failed := make(map[string]bool)
	for _, f := range rr.Failures() {
		failed[f.BackendID] = true
	}
	if err := s.ledger.Apply(q.Round, deltas, failed); err != nil {
		return nil, eris.Wrapf(err, "session: apply round %d", q.Round)
	}

	summary := &model.RoundSummary{
		Round:       q.Round,
		QuestionID:  q.ID,
		Question:    q.Text,
		Outcomes:    rr.Outcomes(),
		Deltas:      deltas,
		Leaderboard: s.ledger.Snapshot(),
	}

	if s.sink != nil {
		if err := s.sink.RecordRound(ctx, s.ID, summary); err != nil {
			zap.L().Warn("session: record round failed",
				zap.String("session_id", s.ID),
				zap.Int("round", q.Round),
				zap.Error(err),
			)
		}
	}

	return summary, nil
}

// Leaderboard returns the current standings. Readable even after Close so
// the front end can show the final board.
func (s *Session) Leaderboard() []model.ReputationEntry {
	return s.ledger.Snapshot()
}

// History returns a backend's per-round delta audit trail.
func (s *Session) History(backendID string) []ledger.HistoryEntry {
	return s.ledger.History(backendID)
}

// Rounds reports how many rounds have been applied to the ledger.
func (s *Session) Rounds() int {
	return s.ledger.Rounds()
}

// Close terminates the session. Any in-flight round is cancelled
// cooperatively; further SubmitQuestion calls fail with ErrSessionClosed.
// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	if s.cancelRound != nil {
		s.cancelRound()
	}
}
