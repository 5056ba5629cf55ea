package model

import "time"

// FailureKind classifies why a backend produced no usable response.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureTransport   FailureKind = "transport"
	FailureRateLimited FailureKind = "rate_limited"
	FailureMalformed   FailureKind = "malformed"
	FailureCancelled   FailureKind = "cancelled"
)

// Transient reports whether the kind is safe to retry within a round.
// Timeout and Malformed are terminal per call; Cancelled is terminal by
// definition.
func (k FailureKind) Transient() bool {
	return k == FailureTransport || k == FailureRateLimited
}

// Response is a successful answer from one backend to one question.
// Created once per backend per round, never mutated.
type Response struct {
	BackendID  string        `json:"backend_id"`
	QuestionID string        `json:"question_id"`
	Text       string        `json:"text"`
	Latency    time.Duration `json:"latency_ms"`
}

// Failure is a classified terminal failure from one backend for one question.
type Failure struct {
	BackendID        string      `json:"backend_id"`
	QuestionID       string      `json:"question_id"`
	Kind             FailureKind `json:"kind"`
	Attempts         int         `json:"attempts"`
	RetriesExhausted bool        `json:"retries_exhausted"`
	Message          string      `json:"message,omitempty"`
}

// Outcome is the terminal result of one backend's participation in a round:
// exactly one of Response or Failure is non-nil.
type Outcome struct {
	BackendID string    `json:"backend_id"`
	Response  *Response `json:"response,omitempty"`
	Failure   *Failure  `json:"failure,omitempty"`
}

// Success reports whether the outcome carries a response.
func (o Outcome) Success() bool { return o.Response != nil }
