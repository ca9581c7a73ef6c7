package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates live session states.
type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "waiting"
	SessionStatusCountdown SessionStatus = "countdown"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
)

// SessionSettings are fixed at session creation time.
type SessionSettings struct {
	MaxPlayers       int      `json:"max_players"`
	QuestionCount    int      `json:"question_count"`
	Difficulty       string   `json:"difficulty"`
	Categories       []string `json:"categories,omitempty"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
	Points           int      `json:"points"`
	TimeBonus        bool     `json:"time_bonus"`
}

// CreateSessionRequest is the admin payload for creating a session.
// Zero fields fall back to the configured defaults.
type CreateSessionRequest struct {
	MaxPlayers       int      `json:"max_players" binding:"omitempty,min=1,max=100"`
	QuestionCount    int      `json:"question_count" binding:"omitempty,min=1,max=50"`
	Difficulty       string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard any"`
	Categories       []string `json:"categories" binding:"omitempty,max=10,dive,max=64"`
	TimeLimitSeconds int      `json:"time_limit_seconds" binding:"omitempty,min=5,max=300"`
	Points           int      `json:"points" binding:"omitempty,min=1,max=10000"`
	TimeBonus        *bool    `json:"time_bonus"`
}

// ─── Durable snapshots ──────────────────────────────────────────────
//
// The in-memory session is authoritative during gameplay. These records are
// the best-effort mirror pushed through the persistence queue and written by
// the snapshot worker. Upserts are idempotent; a newer snapshot of the same
// session simply overwrites the previous rows.

// SessionSnapshot mirrors a session for audit and history.
type SessionSnapshot struct {
	ID              uuid.UUID        `json:"id"`
	JoinCode        string           `json:"join_code"`
	HostID          int              `json:"host_id"`
	Status          SessionStatus    `json:"status"`
	CurrentQuestion int              `json:"current_question"`
	QuestionCount   int              `json:"question_count"`
	Settings        SessionSettings  `json:"settings"`
	Players         []PlayerSnapshot `json:"players"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	EndedAt         *time.Time       `json:"ended_at,omitempty"`
}

// PlayerSnapshot mirrors a player and their answers.
type PlayerSnapshot struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Score        int              `json:"score"`
	JoinedAt     time.Time        `json:"joined_at"`
	LastActiveAt time.Time        `json:"last_active_at"`
	Answers      []AnswerSnapshot `json:"answers"`
}

// AnswerSnapshot mirrors a single scored answer.
type AnswerSnapshot struct {
	QuestionIndex  int  `json:"question_index"`
	ChoiceIndex    int  `json:"choice_index"`
	Correct        bool `json:"correct"`
	TimeToAnswerMs int  `json:"time_to_answer_ms"`
	Points         int  `json:"points"`
}
