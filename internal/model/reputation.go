package model

// Rationale tags attached to score deltas for audit.
const (
	RationaleAgreedWithMajority = "agreed-with-majority"
	RationaleOutlier            = "outlier"
	RationaleMiddleOfPack       = "middle-of-pack"
	RationaleInsufficientData   = "insufficient-data"
	RationaleNoResponse         = "no-response"
)

// ScoreDelta is one backend's score adjustment for one round. Deltas can be
// negative.
type ScoreDelta struct {
	BackendID string  `json:"backend_id"`
	Round     int     `json:"round"`
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

// ReputationEntry is the accumulated standing of one backend across all
// rounds applied so far. Round counters only ever increase.
type ReputationEntry struct {
	BackendID    string  `json:"backend_id"`
	Score        float64 `json:"score"`
	Rounds       int     `json:"rounds"`
	FailedRounds int     `json:"failed_rounds"`
}

// RoundSummary is what the front end receives after a completed round:
// the sealed outcomes, the deltas applied, and the refreshed leaderboard.
type RoundSummary struct {
	Round       int               `json:"round"`
	QuestionID  string            `json:"question_id"`
	Question    string            `json:"question"`
	Outcomes    []Outcome         `json:"outcomes"`
	Deltas      []ScoreDelta      `json:"deltas"`
	Leaderboard []ReputationEntry `json:"leaderboard"`
}
