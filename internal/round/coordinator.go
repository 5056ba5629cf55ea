// Package round dispatches one question to every registered backend
// concurrently and assembles the sealed, complete RoundResult the scoring
// engine consumes.
package round

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/quorum/internal/backend"
	"github.com/sells-group/quorum/internal/model"
)

// DefaultDeadline bounds a round when no deadline is configured.
const DefaultDeadline = 60 * time.Second

// Coordinator fans a question out to the full roster and joins at the round
// deadline. A backend's failure never blocks or cancels another's call.
type Coordinator struct {
	queriers []backend.Querier
	deadline time.Duration
}

// New creates a coordinator over a fixed roster.
func New(queriers []backend.Querier, deadline time.Duration) *Coordinator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Coordinator{queriers: queriers, deadline: deadline}
}

// Roster returns the registered backends in registration order.
func (c *Coordinator) Roster() []model.Backend {
	roster := make([]model.Backend, len(c.queriers))
	for i, qr := range c.queriers {
		roster[i] = qr.Backend()
	}
	return roster
}

// Run executes one round: all backends are dispatched together, each
// produces exactly one terminal outcome, and the result seals either when
// everyone has reported or when the deadline lapses. Backends still pending
// at the deadline are recorded as Failure(Timeout) with retries intact, and
// whatever they eventually return is discarded.
func (c *Coordinator) Run(ctx context.Context, q model.Question) (*model.RoundResult, error) {
	if len(c.queriers) == 0 {
		return nil, eris.New("round: empty backend roster")
	}

	log := zap.L().With(zap.Int("round", q.Round), zap.String("question_id", q.ID))
	log.Info("round: dispatching", zap.Int("backends", len(c.queriers)))

	result := model.NewRoundResult(q, c.Roster())

	roundCtx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	// All records go through mu so the deadline path can seal without racing
	// a late delivery.
	var mu sync.Mutex
	record := func(o model.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		result.Record(o)
	}

	var g errgroup.Group
	for _, qr := range c.queriers {
		g.Go(func() error {
			resp, fail := qr.Query(roundCtx, q)
			if fail != nil {
				record(model.Outcome{BackendID: qr.Backend().ID, Failure: fail})
				return nil
			}
			record(model.Outcome{BackendID: qr.Backend().ID, Response: resp})
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-roundCtx.Done():
		// Deadline hit: cancel signals are already propagating through
		// roundCtx. Record a timeout for anyone still pending and seal;
		// stragglers are dropped by the sealed result.
	}

	mu.Lock()
	for _, b := range c.Roster() {
		if result.Has(b.ID) {
			continue
		}
		result.Record(model.Outcome{
			BackendID: b.ID,
			Failure: &model.Failure{
				BackendID:        b.ID,
				QuestionID:       q.ID,
				Kind:             model.FailureTimeout,
				RetriesExhausted: false,
				Message:          "round deadline elapsed",
			},
		})
	}
	err := result.Seal()
	mu.Unlock()
	if err != nil {
		return nil, eris.Wrap(err, "round: seal")
	}

	log.Info("round: sealed",
		zap.Int("successes", len(result.Successes())),
		zap.Int("failures", len(result.Failures())),
	)
	return result, nil
}
