// Package ledger accumulates score deltas into per-backend reputation.
// A ledger is owned by exactly one session; Apply is the only mutation
// path and each round is applied at most once.
package ledger

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quorum/internal/model"
)

// ErrDuplicateRound is returned when a round id has already been applied.
var ErrDuplicateRound = eris.New("ledger: round already applied")

// HistoryEntry is one audit record: the delta a backend received in a round.
type HistoryEntry struct {
	Round     int     `json:"round"`
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

// Ledger is the session-scoped reputation state. Safe for concurrent use;
// Apply is exclusive so a round's deltas land atomically or not at all.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*model.ReputationEntry
	history map[string][]HistoryEntry
	applied map[int]bool
	order   []string // backend registration order, for stable tie display
}

// New creates an empty ledger for the given roster. Backends appear in
// snapshots from the first round they participate in.
func New(roster []model.Backend) *Ledger {
	l := &Ledger{
		entries: make(map[string]*model.ReputationEntry, len(roster)),
		history: make(map[string][]HistoryEntry),
		applied: make(map[int]bool),
	}
	for _, b := range roster {
		l.order = append(l.order, b.ID)
		l.entries[b.ID] = &model.ReputationEntry{BackendID: b.ID}
	}
	return l
}

// Apply appends one round's deltas atomically. A round id that was already
// applied fails with ErrDuplicateRound and leaves all state untouched.
// failedByID marks which backends failed the round, for the failure counter.
func (l *Ledger) Apply(round int, deltas []model.ScoreDelta, failedByID map[string]bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.applied[round] {
		return eris.Wrapf(ErrDuplicateRound, "round %d", round)
	}

	for _, d := range deltas {
		e, ok := l.entries[d.BackendID]
		if !ok {
			e = &model.ReputationEntry{BackendID: d.BackendID}
			l.entries[d.BackendID] = e
			l.order = append(l.order, d.BackendID)
		}
		e.Score += d.Delta
		e.Rounds++
		if failedByID[d.BackendID] {
			e.FailedRounds++
		}
		l.history[d.BackendID] = append(l.history[d.BackendID], HistoryEntry{
			Round:     d.Round,
			Delta:     d.Delta,
			Rationale: d.Rationale,
		})
	}

	l.applied[round] = true
	return nil
}

// Snapshot returns the current standings sorted by cumulative score
// descending, ties broken by backend id ascending.
func (l *Ledger) Snapshot() []model.ReputationEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.ReputationEntry, 0, len(l.entries))
	for _, id := range l.order {
		out = append(out, *l.entries[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].BackendID < out[j].BackendID
	})
	return out
}

// History returns a backend's deltas in the order rounds were applied.
func (l *Ledger) History(backendID string) []HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.history[backendID]
	out := make([]HistoryEntry, len(src))
	copy(out, src)
	return out
}

// Rounds reports how many rounds have been applied.
func (l *Ledger) Rounds() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.applied)
}
