package model

import (
	"github.com/rotisserie/eris"
)

// ErrIncompleteRound is returned when a round result is sealed without
// exactly one terminal outcome per registered backend.
var ErrIncompleteRound = eris.New("round result incomplete")

// RoundResult holds one terminal outcome per registered backend for a single
// question. It is assembled by the round coordinator and immutable once
// sealed.
type RoundResult struct {
	QuestionID string
	Round      int

	order    []string
	outcomes map[string]Outcome
	sealed   bool
}

// NewRoundResult creates an unsealed result for the given backend roster.
// Roster order is preserved for Outcomes().
func NewRoundResult(q Question, roster []Backend) *RoundResult {
	order := make([]string, len(roster))
	for i, b := range roster {
		order[i] = b.ID
	}
	return &RoundResult{
		QuestionID: q.ID,
		Round:      q.Round,
		order:      order,
		outcomes:   make(map[string]Outcome, len(roster)),
	}
}

// Record stores a backend's terminal outcome. The first outcome per backend
// wins; late results after the deadline are discarded by the coordinator
// before sealing, so a duplicate here is a programming error and is ignored.
func (r *RoundResult) Record(o Outcome) {
	if r.sealed {
		return
	}
	if _, dup := r.outcomes[o.BackendID]; dup {
		return
	}
	r.outcomes[o.BackendID] = o
}

// Has reports whether the backend already has a terminal outcome.
func (r *RoundResult) Has(backendID string) bool {
	_, ok := r.outcomes[backendID]
	return ok
}

// Seal freezes the result. It fails with ErrIncompleteRound unless every
// rostered backend has exactly one outcome.
func (r *RoundResult) Seal() error {
	for _, id := range r.order {
		if _, ok := r.outcomes[id]; !ok {
			return eris.Wrapf(ErrIncompleteRound, "backend %s has no outcome", id)
		}
	}
	if len(r.outcomes) != len(r.order) {
		return eris.Wrap(ErrIncompleteRound, "outcome count does not match roster")
	}
	r.sealed = true
	return nil
}

// Sealed reports whether the result has been frozen.
func (r *RoundResult) Sealed() bool { return r.sealed }

// Outcomes returns the outcomes in roster registration order.
func (r *RoundResult) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.order))
	for _, id := range r.order {
		if o, ok := r.outcomes[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Outcome returns the outcome for one backend.
func (r *RoundResult) Outcome(backendID string) (Outcome, bool) {
	o, ok := r.outcomes[backendID]
	return o, ok
}

// Successes returns the successful responses in roster order.
func (r *RoundResult) Successes() []Response {
	var out []Response
	for _, id := range r.order {
		if o, ok := r.outcomes[id]; ok && o.Success() {
			out = append(out, *o.Response)
		}
	}
	return out
}

// Failures returns the failure entries in roster order.
func (r *RoundResult) Failures() []Failure {
	var out []Failure
	for _, id := range r.order {
		if o, ok := r.outcomes[id]; ok && !o.Success() {
			out = append(out, *o.Failure)
		}
	}
	return out
}
