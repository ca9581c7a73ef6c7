package game

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound engine event.
type EventType string

const (
	EventJoined         EventType = "joined"
	EventPlayerJoined   EventType = "playerJoined"
	EventPlayerLeft     EventType = "playerLeft"
	EventCountdown      EventType = "countdown"
	EventGameStarted    EventType = "gameStarted"
	EventQuestion       EventType = "question"
	EventAnswerResult   EventType = "answerResult"
	EventScoreUpdate    EventType = "scoreUpdate"
	EventAnswerProgress EventType = "answerProgress"
	EventAnswerRevealed EventType = "answerRevealed"
	EventGamePaused     EventType = "gamePaused"
	EventGameResumed    EventType = "gameResumed"
	EventGameCompleted  EventType = "gameCompleted"
	EventSessionEnded   EventType = "sessionEnded"
	EventState          EventType = "state"
	EventError          EventType = "error"
)

// Event is a single outbound state-change notification.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// Broadcaster fans engine events out to the connections bound to a session.
// The websocket hub implements it; tests use a recording fake.
type Broadcaster interface {
	// ToRoom delivers to every connection in the session's room.
	ToRoom(sessionID uuid.UUID, evt Event)
	// ToPlayer delivers to the connections bound to one player only.
	ToPlayer(sessionID, playerID uuid.UUID, evt Event)
	// ToObservers delivers to the driver/admin side channel only.
	ToObservers(sessionID uuid.UUID, evt Event)
}

// ─── Event payloads ─────────────────────────────────────────────────

// JoinedPayload is sent to the joining player only.
type JoinedPayload struct {
	PlayerID  uuid.UUID `json:"player_id"`
	SessionID uuid.UUID `json:"session_id"`
	JoinCode  string    `json:"join_code"`
	Status    string    `json:"status"`
	RoomSize  int       `json:"room_size"`
	Rejoined  bool      `json:"rejoined,omitempty"`
}

// PresencePayload announces a player joining or leaving the room.
type PresencePayload struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	RoomSize int       `json:"room_size"`
}

// CountdownPayload carries one pre-game countdown tick.
type CountdownPayload struct {
	SecondsRemaining int `json:"seconds_remaining"`
}

// GameStartedPayload is broadcast when the countdown reaches zero.
type GameStartedPayload struct {
	TotalQuestions int `json:"total_questions"`
}

// QuestionPayload serves a question to the room. The correct index is
// deliberately absent.
type QuestionPayload struct {
	Index          int       `json:"index"`
	TotalQuestions int       `json:"total_questions"`
	Category       string    `json:"category"`
	Difficulty     string    `json:"difficulty"`
	Text           string    `json:"text"`
	Choices        []string  `json:"choices"`
	TimeLimitMs    int       `json:"time_limit_ms"`
	AskedAt        time.Time `json:"asked_at"`
}

// AnswerResultPayload is sent to the answering player only; it is the one
// place a player learns the correct index before reveal.
type AnswerResultPayload struct {
	QuestionIndex int  `json:"question_index"`
	Correct       bool `json:"correct"`
	Points        int  `json:"points"`
	RunningTotal  int  `json:"running_total"`
	CorrectIndex  int  `json:"correct_index"`
}

// PlayerTally is one row of the running scoreboard.
type PlayerTally struct {
	PlayerID  uuid.UUID `json:"player_id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Answered  bool      `json:"answered"`
	Connected bool      `json:"connected"`
}

// ScoreUpdatePayload is broadcast after each accepted answer. It never
// carries the correct index.
type ScoreUpdatePayload struct {
	QuestionIndex int           `json:"question_index"`
	Tally         []PlayerTally `json:"tally"`
}

// AnswerProgressPayload is an observer-only tick counting how much of the
// room has answered the current question.
type AnswerProgressPayload struct {
	QuestionIndex int `json:"question_index"`
	Answered      int `json:"answered"`
	Connected     int `json:"connected"`
}

// RevealPayload is broadcast when the current question is revealed.
type RevealPayload struct {
	QuestionIndex int    `json:"question_index"`
	CorrectIndex  int    `json:"correct_index"`
	Explanation   string `json:"explanation,omitempty"`
}

// FinalScore is one row of the final, descending leaderboard.
type FinalScore struct {
	Position int       `json:"position"`
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
}

// GameCompletedPayload is broadcast exactly once, when a session finishes.
type GameCompletedPayload struct {
	FinalScores     []FinalScore `json:"final_scores"`
	TotalQuestions  int          `json:"total_questions"`
	DurationSeconds int          `json:"duration_seconds"`
}

// StatePayload is a full resync snapshot pushed to one connection, typically
// after a reconnect. OwnAnswer is the player's prior answer for the current
// question, if any; Question withholds the correct index unless revealed.
type StatePayload struct {
	SessionID        uuid.UUID        `json:"session_id"`
	Status           string           `json:"status"`
	Phase            string           `json:"phase,omitempty"`
	CountdownSeconds int              `json:"countdown_seconds,omitempty"`
	Question         *QuestionPayload `json:"question,omitempty"`
	CorrectIndex     *int             `json:"correct_index,omitempty"`
	OwnAnswer        *OwnAnswer       `json:"own_answer,omitempty"`
	Tally            []PlayerTally    `json:"tally"`
}

// OwnAnswer echoes a player's recorded answer back to them.
type OwnAnswer struct {
	QuestionIndex int  `json:"question_index"`
	ChoiceIndex   int  `json:"choice_index"`
	Correct       bool `json:"correct"`
	Points        int  `json:"points"`
}

// ErrorPayload is a typed error event delivered to one connection.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
