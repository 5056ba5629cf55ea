package model

import (
	"time"

	"github.com/google/uuid"
)

// Question is one free-text prompt issued to every registered backend in a
// round. Immutable once issued.
type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

// NewQuestion issues a question for the given round number.
func NewQuestion(text string, round int) Question {
	return Question{
		ID:        uuid.New().String(),
		Text:      text,
		Round:     round,
		CreatedAt: time.Now().UTC(),
	}
}
