package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty levels accepted by the question bank. DifficultyAny matches all.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyAny    = "any"
)

// Question is a bank question as stored in PostgreSQL. The correct choice
// index never leaves the server before reveal; json tags here are for the
// admin API, which is behind the host JWT.
type Question struct {
	ID               uuid.UUID `json:"id"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
	Text             string    `json:"text"`
	Choices          []string  `json:"choices"`
	CorrectIndex     int       `json:"correct_index"`
	TimeLimitSeconds int       `json:"time_limit_seconds"`
	Points           int       `json:"points"`
	Explanation      string    `json:"explanation,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// QuestionRequest is the payload for creating or updating a bank question.
type QuestionRequest struct {
	Category         string   `json:"category" binding:"required,max=64"`
	Difficulty       string   `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Text             string   `json:"text" binding:"required,max=500"`
	Choices          []string `json:"choices" binding:"required,min=2,max=8,dive,required,max=200"`
	CorrectIndex     int      `json:"correct_index" binding:"min=0"`
	TimeLimitSeconds int      `json:"time_limit_seconds" binding:"omitempty,min=5,max=300"`
	Points           int      `json:"points" binding:"omitempty,min=1,max=10000"`
	Explanation      string   `json:"explanation" binding:"omitempty,max=500"`
}
