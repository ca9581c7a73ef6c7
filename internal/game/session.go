package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// Phase is the sub-phase of an active session.
type Phase string

const (
	PhaseQuestionOpen Phase = "question-open"
	PhaseRevealed     Phase = "revealed"
)

// Question is a live, served question. Index is 1-based; AskedAt is set once,
// the moment the question is served to the room.
type Question struct {
	Index        int
	Category     string
	Difficulty   string
	Text         string
	Choices      []string
	CorrectIndex int
	TimeLimit    time.Duration
	Points       int
	Explanation  string
	AskedAt      time.Time
}

// Answer is created exactly once per (player, question) pair and is immutable
// after creation.
type Answer struct {
	QuestionIndex int
	ChoiceIndex   int
	Correct       bool
	TimeToAnswer  time.Duration
	Points        int
	AnsweredAt    time.Time
}

// Player is a participant. The id is stable across reconnects; ConnID is the
// transport handle and empty while disconnected.
type Player struct {
	ID           uuid.UUID
	Name         string
	DeviceTag    string
	ConnID       string
	Connected    bool
	Score        int
	Answers      []Answer
	JoinedAt     time.Time
	LastActiveAt time.Time
}

// AnswerFor returns the player's answer for a question index, or nil.
func (p *Player) AnswerFor(index int) *Answer {
	for i := range p.Answers {
		if p.Answers[i].QuestionIndex == index {
			return &p.Answers[i]
		}
	}
	return nil
}

// Session is the live, in-memory authoritative record of one game. All
// mutations go through the engine while holding mu; I/O code only ever sees
// data copied out under the lock.
type Session struct {
	mu sync.Mutex

	ID       uuid.UUID
	JoinCode string
	HostID   int

	Status model.SessionStatus
	Phase  Phase

	Questions []Question
	// CurrentIndex is 1-based; 0 means no question has been served yet.
	CurrentIndex int

	// Players is insertion-ordered; players stay listed after disconnecting
	// so they can resume with the same id.
	Players []*Player

	Settings model.SessionSettings

	CountdownRemaining int
	// autoPaused is true when the pause was triggered by everyone
	// disconnecting rather than by the host.
	autoPaused bool
	// pausedRemaining freezes the open question's remaining time across a
	// pause, so the paused span never counts against players.
	pausedRemaining time.Duration

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	Metadata map[string]string
}

func (s *Session) player(id uuid.UUID) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) connectedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// currentQuestion returns the question being played, or nil outside 1..N.
func (s *Session) currentQuestion() *Question {
	if s.CurrentIndex < 1 || s.CurrentIndex > len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentIndex-1]
}

// answeredCount counts players with an answer for the current question.
func (s *Session) answeredCount() int {
	n := 0
	for _, p := range s.Players {
		if p.AnswerFor(s.CurrentIndex) != nil {
			n++
		}
	}
	return n
}

// allConnectedAnswered reports whether every currently-connected player has
// an answer for the current question. False when nobody is connected.
func (s *Session) allConnectedAnswered() bool {
	connected := 0
	for _, p := range s.Players {
		if !p.Connected {
			continue
		}
		connected++
		if p.AnswerFor(s.CurrentIndex) == nil {
			return false
		}
	}
	return connected > 0
}

func (s *Session) tally() []PlayerTally {
	tally := make([]PlayerTally, 0, len(s.Players))
	for _, p := range s.Players {
		tally = append(tally, PlayerTally{
			PlayerID:  p.ID,
			Name:      p.Name,
			Score:     p.Score,
			Answered:  p.AnswerFor(s.CurrentIndex) != nil,
			Connected: p.Connected,
		})
	}
	return tally
}

// Snapshot copies the session into its durable representation. Callers must
// hold mu; the engine does this before every persistence enqueue.
func (s *Session) snapshotLocked() *model.SessionSnapshot {
	snap := &model.SessionSnapshot{
		ID:              s.ID,
		JoinCode:        s.JoinCode,
		HostID:          s.HostID,
		Status:          s.Status,
		CurrentQuestion: s.CurrentIndex,
		QuestionCount:   len(s.Questions),
		Settings:        s.Settings,
		CreatedAt:       s.CreatedAt,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		snap.StartedAt = &t
	}
	if !s.EndedAt.IsZero() {
		t := s.EndedAt
		snap.EndedAt = &t
	}
	for _, p := range s.Players {
		ps := model.PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Score:        p.Score,
			JoinedAt:     p.JoinedAt,
			LastActiveAt: p.LastActiveAt,
		}
		for _, a := range p.Answers {
			ps.Answers = append(ps.Answers, model.AnswerSnapshot{
				QuestionIndex:  a.QuestionIndex,
				ChoiceIndex:    a.ChoiceIndex,
				Correct:        a.Correct,
				TimeToAnswerMs: int(a.TimeToAnswer.Milliseconds()),
				Points:         a.Points,
			})
		}
		snap.Players = append(snap.Players, ps)
	}
	return snap
}
