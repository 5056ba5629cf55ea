// Package scoring turns a sealed round result into per-backend score deltas
// using quartile ranking over pairwise agreement, so no absolute similarity
// scale is assumed and the math holds for any roster size.
package scoring

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/quorum/internal/model"
)

// Config holds the scoring knobs. Participation penalty must stay smaller
// than the divergence penalty: failing to answer is bad, confidently
// disagreeing with everyone is worse.
type Config struct {
	// RewardScale multiplies a top-quartile backend's alignment into its
	// positive delta. Default: 2.0.
	RewardScale float64

	// PenaltyScale multiplies a bottom-quartile backend's divergence
	// (1 - alignment) into its negative delta. Default: 2.0.
	PenaltyScale float64

	// ParticipationPenalty is the fixed deduction for every failure entry.
	// Default: 0.25.
	ParticipationPenalty float64

	// DivergenceThreshold applies when exactly two backends succeed: below
	// this agreement both are penalized, at or above it both get zero.
	// Default: 0.3.
	DivergenceThreshold float64
}

// DefaultConfig returns the standard scoring knobs.
func DefaultConfig() Config {
	return Config{
		RewardScale:          2.0,
		PenaltyScale:         2.0,
		ParticipationPenalty: 0.25,
		DivergenceThreshold:  0.3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RewardScale <= 0 {
		c.RewardScale = d.RewardScale
	}
	if c.PenaltyScale <= 0 {
		c.PenaltyScale = d.PenaltyScale
	}
	if c.ParticipationPenalty <= 0 {
		c.ParticipationPenalty = d.ParticipationPenalty
	}
	if c.DivergenceThreshold <= 0 {
		c.DivergenceThreshold = d.DivergenceThreshold
	}
	return c
}

// Engine scores sealed rounds with an injected comparator.
type Engine struct {
	cmp Comparator
	cfg Config
}

// NewEngine creates a scoring engine. A nil comparator falls back to the
// lexical default.
func NewEngine(cmp Comparator, cfg Config) *Engine {
	if cmp == nil {
		cmp = LexicalComparator{}
	}
	return &Engine{cmp: cmp, cfg: cfg.withDefaults()}
}

// alignment is one successful backend's mean agreement with every other
// successful backend in the round.
type alignment struct {
	backendID string
	score     float64
}

// Score derives exactly one delta per round entry, in roster order.
// Failures always carry the fixed participation penalty. Successes are
// ranked by consensus alignment; fewer than two successes means no
// consensus is computable and every success gets a zero delta.
func (e *Engine) Score(rr *model.RoundResult) []model.ScoreDelta {
	successes := rr.Successes()
	deltaByID := make(map[string]model.ScoreDelta, len(rr.Outcomes()))

	switch {
	case len(successes) < 2:
		for _, s := range successes {
			deltaByID[s.BackendID] = model.ScoreDelta{
				BackendID: s.BackendID,
				Round:     rr.Round,
				Delta:     0,
				Rationale: model.RationaleInsufficientData,
			}
		}
	case len(successes) == 2:
		e.scorePair(rr.Round, successes, deltaByID)
	default:
		e.scoreQuartiles(rr.Round, successes, deltaByID)
	}

	for _, f := range rr.Failures() {
		deltaByID[f.BackendID] = model.ScoreDelta{
			BackendID: f.BackendID,
			Round:     rr.Round,
			Delta:     -e.cfg.ParticipationPenalty,
			Rationale: model.RationaleNoResponse,
		}
	}

	// Emit in roster order for stable output.
	deltas := make([]model.ScoreDelta, 0, len(rr.Outcomes()))
	for _, o := range rr.Outcomes() {
		deltas = append(deltas, deltaByID[o.BackendID])
	}
	return deltas
}

// scorePair handles the two-success round: quartile spread is not computable
// from two points, so both get equal alignment and a zero delta unless the
// comparator reports meaningful divergence, in which case both are docked.
func (e *Engine) scorePair(round int, successes []model.Response, out map[string]model.ScoreDelta) {
	agreement := e.cmp.Compare(successes[0].Text, successes[1].Text)

	delta := 0.0
	rationale := model.RationaleAgreedWithMajority
	if agreement < e.cfg.DivergenceThreshold {
		delta = -e.cfg.PenaltyScale * (1 - agreement)
		rationale = model.RationaleOutlier
	}

	for _, s := range successes {
		out[s.BackendID] = model.ScoreDelta{
			BackendID: s.BackendID,
			Round:     round,
			Delta:     delta,
			Rationale: rationale,
		}
	}
}

func (e *Engine) scoreQuartiles(round int, successes []model.Response, out map[string]model.ScoreDelta) {
	aligns := e.alignments(successes)

	// Rank by alignment descending; quartile boundary ties break on backend
	// id ascending so repeated scoring of the same round is identical.
	sort.Slice(aligns, func(i, j int) bool {
		if aligns[i].score != aligns[j].score {
			return aligns[i].score > aligns[j].score
		}
		return aligns[i].backendID < aligns[j].backendID
	})

	n := len(aligns)
	quartile := n / 4
	if quartile == 0 {
		quartile = 1
	}

	for rank, a := range aligns {
		d := model.ScoreDelta{
			BackendID: a.backendID,
			Round:     round,
			Delta:     0,
			Rationale: model.RationaleMiddleOfPack,
		}
		switch {
		case rank < quartile:
			d.Delta = e.cfg.RewardScale * a.score
			d.Rationale = model.RationaleAgreedWithMajority
		case rank >= n-quartile:
			d.Delta = -e.cfg.PenaltyScale * (1 - a.score)
			d.Rationale = model.RationaleOutlier
		}
		out[a.backendID] = d
	}

	zap.L().Debug("scoring: quartiles assigned",
		zap.Int("round", round),
		zap.Int("successes", n),
		zap.Int("quartile_size", quartile),
	)
}

func (e *Engine) alignments(successes []model.Response) []alignment {
	aligns := make([]alignment, len(successes))
	for i, a := range successes {
		var sum float64
		for j, b := range successes {
			if i == j {
				continue
			}
			sum += e.cmp.Compare(a.Text, b.Text)
		}
		aligns[i] = alignment{
			backendID: a.BackendID,
			score:     sum / float64(len(successes)-1),
		}
	}
	return aligns
}
