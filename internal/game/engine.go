package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// QuestionSource supplies formatted questions for a new session. The loader
// must return exactly count questions, falling back to a built-in set when
// the bank cannot satisfy the request.
type QuestionSource interface {
	Load(ctx context.Context, count int, difficulty string, categories []string) ([]model.Question, error)
}

// Persister accepts best-effort session snapshots. Implementations must
// never block the caller for long and must swallow their own failures;
// the in-memory session stays authoritative either way.
type Persister interface {
	SaveSnapshot(snap *model.SessionSnapshot)
}

// Options tune game pacing.
type Options struct {
	CountdownSeconds int
	RevealDelay      time.Duration
	GraceWindow      time.Duration
	// AutostartMinPlayers is the connected-player threshold that triggers
	// the countdown automatically. 0 disables auto-start; the host must
	// call Start explicitly.
	AutostartMinPlayers int
}

// Engine is the game state machine. Every mutation of a session happens in
// exactly one place: a method of this type, holding that session's lock from
// validation through commit. Timer firings loop back in through handleTimer
// and take the same lock, so two events for the same session never interleave.
type Engine struct {
	store     SessionStore
	sched     *Scheduler
	clock     clockwork.Clock
	bcast     Broadcaster
	questions QuestionSource
	persist   Persister
	opts      Options
	log       zerolog.Logger
}

// NewEngine wires the engine with its collaborators.
func NewEngine(
	store SessionStore,
	sched *Scheduler,
	clock clockwork.Clock,
	bcast Broadcaster,
	questions QuestionSource,
	persist Persister,
	opts Options,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		store:     store,
		sched:     sched,
		clock:     clock,
		bcast:     bcast,
		questions: questions,
		persist:   persist,
		opts:      opts,
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// ─── Session lifecycle ──────────────────────────────────────────────

// CreateSession loads questions from the bank and registers a fresh session
// in waiting state.
func (e *Engine) CreateSession(ctx context.Context, hostID int, settings model.SessionSettings) (*Session, error) {
	loaded, err := e.questions.Load(ctx, settings.QuestionCount, settings.Difficulty, settings.Categories)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	now := e.clock.Now()
	s := &Session{
		ID:        uuid.New(),
		JoinCode:  e.generateJoinCode(),
		HostID:    hostID,
		Status:    model.SessionStatusWaiting,
		Settings:  settings,
		CreatedAt: now,
		Metadata:  make(map[string]string),
	}
	for i, q := range loaded {
		limit := time.Duration(q.TimeLimitSeconds) * time.Second
		if limit <= 0 {
			limit = time.Duration(settings.TimeLimitSeconds) * time.Second
		}
		points := q.Points
		if points <= 0 {
			points = settings.Points
		}
		s.Questions = append(s.Questions, Question{
			Index:        i + 1,
			Category:     q.Category,
			Difficulty:   q.Difficulty,
			Text:         q.Text,
			Choices:      q.Choices,
			CorrectIndex: q.CorrectIndex,
			TimeLimit:    limit,
			Points:       points,
			Explanation:  q.Explanation,
		})
	}

	// Snapshot before Put: once the session is in the store it is reachable
	// by concurrent joins, and every read of it requires s.mu.
	snap := s.snapshotLocked()
	e.store.Put(s)
	e.enqueueSnapshot(snap)

	e.log.Info().
		Str("session_id", s.ID.String()).
		Str("join_code", s.JoinCode).
		Int("questions", len(s.Questions)).
		Msg("session created")

	return s, nil
}

// ResolveCode maps a join code to a live session id.
func (e *Engine) ResolveCode(code string) (uuid.UUID, error) {
	s, ok := e.store.GetByCode(code)
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}
	return s.ID, nil
}

// Join attaches a player to a session. A non-nil existingID with a matching
// player record is a reconnect: the connection handle is rebound and a full
// state snapshot is pushed to that player. An existingID without a match is
// adopted as the new player's id, so the transport can bind the connection
// before the join event fires. New joins are rejected once the first question
// has been served, or when the room is full.
func (e *Engine) Join(sessionID uuid.UUID, name, deviceTag string, existingID *uuid.UUID, connID string) (*Player, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status == model.SessionStatusCompleted {
		return nil, ErrSessionClosed
	}

	now := e.clock.Now()

	// Reconnect path: same player id presented again, possibly via a new
	// connection.
	if existingID != nil {
		if p := s.player(*existingID); p != nil {
			p.ConnID = connID
			p.Connected = true
			p.LastActiveAt = now

			if s.Status == model.SessionStatusPaused && s.autoPaused {
				e.resumeLocked(s)
			}

			e.bcast.ToPlayer(s.ID, p.ID, Event{Type: EventJoined, Data: JoinedPayload{
				PlayerID:  p.ID,
				SessionID: s.ID,
				JoinCode:  s.JoinCode,
				Status:    string(s.Status),
				RoomSize:  s.connectedCount(),
				Rejoined:  true,
			}})
			e.bcast.ToRoom(s.ID, Event{Type: EventPlayerJoined, Data: PresencePayload{
				PlayerID: p.ID, Name: p.Name, RoomSize: s.connectedCount(),
			}})
			e.maybeAutostartLocked(s)
			e.pushStateLocked(s, p)
			return p, nil
		}
	}

	if s.Status != model.SessionStatusWaiting && s.Status != model.SessionStatusCountdown {
		return nil, ErrSessionUnavailable
	}
	if s.Settings.MaxPlayers > 0 && len(s.Players) >= s.Settings.MaxPlayers {
		return nil, ErrSessionUnavailable
	}

	id := uuid.New()
	if existingID != nil && *existingID != uuid.Nil {
		id = *existingID
	}
	p := &Player{
		ID:           id,
		Name:         name,
		DeviceTag:    deviceTag,
		ConnID:       connID,
		Connected:    true,
		JoinedAt:     now,
		LastActiveAt: now,
	}
	s.Players = append(s.Players, p)

	e.bcast.ToPlayer(s.ID, p.ID, Event{Type: EventJoined, Data: JoinedPayload{
		PlayerID:  p.ID,
		SessionID: s.ID,
		JoinCode:  s.JoinCode,
		Status:    string(s.Status),
		RoomSize:  s.connectedCount(),
	}})
	e.bcast.ToRoom(s.ID, Event{Type: EventPlayerJoined, Data: PresencePayload{
		PlayerID: p.ID, Name: p.Name, RoomSize: s.connectedCount(),
	}})

	e.maybeAutostartLocked(s)

	return p, nil
}

// maybeAutostartLocked begins the countdown when a waiting room reaches the
// autostart threshold. Reconnects count the same as fresh joins.
func (e *Engine) maybeAutostartLocked(s *Session) {
	if s.Status == model.SessionStatusWaiting &&
		e.opts.AutostartMinPlayers > 0 &&
		s.connectedCount() >= e.opts.AutostartMinPlayers {
		e.beginCountdownLocked(s)
	}
}

// Start begins the countdown on a waiting session. Used by the host when
// auto-start is disabled or the threshold has not been reached.
func (e *Engine) Start(sessionID uuid.UUID) error {
	return e.withSession(sessionID, func(s *Session) error {
		switch s.Status {
		case model.SessionStatusCompleted:
			return ErrSessionClosed
		case model.SessionStatusWaiting:
			if s.connectedCount() == 0 {
				return ErrSessionUnavailable
			}
			e.beginCountdownLocked(s)
			return nil
		default:
			return ErrSessionUnavailable
		}
	})
}

// Pause suspends an active session on host request.
func (e *Engine) Pause(sessionID uuid.UUID) error {
	return e.withSession(sessionID, func(s *Session) error {
		if s.Status == model.SessionStatusCompleted {
			return ErrSessionClosed
		}
		if s.Status != model.SessionStatusActive {
			return ErrSessionUnavailable
		}
		e.pauseLocked(s, false)
		return nil
	})
}

// Resume continues a paused session.
func (e *Engine) Resume(sessionID uuid.UUID) error {
	return e.withSession(sessionID, func(s *Session) error {
		if s.Status == model.SessionStatusCompleted {
			return ErrSessionClosed
		}
		if s.Status != model.SessionStatusPaused {
			return ErrSessionUnavailable
		}
		e.resumeLocked(s)
		return nil
	})
}

// End finalizes a session immediately with whatever scores exist.
func (e *Engine) End(sessionID uuid.UUID) error {
	return e.withSession(sessionID, func(s *Session) error {
		if s.Status == model.SessionStatusCompleted {
			return ErrSessionClosed
		}
		e.completeLocked(s)
		return nil
	})
}

// Reset ends the current session and creates a fresh one with identical
// settings and a new join code.
func (e *Engine) Reset(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	hostID := s.HostID
	settings := s.Settings
	if s.Status != model.SessionStatusCompleted {
		e.completeLocked(s)
	}
	s.mu.Unlock()

	return e.CreateSession(ctx, hostID, settings)
}

// ─── Answer intake ──────────────────────────────────────────────────

// SubmitAnswer records and scores one answer. The whole path — validation,
// scoring, tally broadcast, and the all-answered early reveal — runs inside
// the session's critical section, so the reveal race against the question
// timer is resolved here, not by the timer.
func (e *Engine) SubmitAnswer(sessionID, playerID uuid.UUID, choiceIndex int) error {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status == model.SessionStatusCompleted {
		return ErrSessionClosed
	}
	if s.Status != model.SessionStatusActive || s.Phase != PhaseQuestionOpen {
		return ErrInvalidSubmission
	}

	q := s.currentQuestion()
	if q == nil {
		return ErrInvalidSubmission
	}
	p := s.player(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if p.AnswerFor(q.Index) != nil {
		return ErrDuplicateAnswer
	}
	if choiceIndex < 0 || choiceIndex >= len(q.Choices) {
		return ErrInvalidSubmission
	}

	now := e.clock.Now()
	elapsed := now.Sub(q.AskedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	correct, points := ScoreAnswer(q.CorrectIndex, choiceIndex, elapsed, q.TimeLimit, q.Points, s.Settings.TimeBonus)

	p.Answers = append(p.Answers, Answer{
		QuestionIndex: q.Index,
		ChoiceIndex:   choiceIndex,
		Correct:       correct,
		TimeToAnswer:  elapsed,
		Points:        points,
		AnsweredAt:    now,
	})
	p.Score += points
	p.LastActiveAt = now

	e.bcast.ToPlayer(s.ID, p.ID, Event{Type: EventAnswerResult, Data: AnswerResultPayload{
		QuestionIndex: q.Index,
		Correct:       correct,
		Points:        points,
		RunningTotal:  p.Score,
		CorrectIndex:  q.CorrectIndex,
	}})
	e.bcast.ToRoom(s.ID, Event{Type: EventScoreUpdate, Data: ScoreUpdatePayload{
		QuestionIndex: q.Index,
		Tally:         s.tally(),
	}})
	e.bcast.ToObservers(s.ID, Event{Type: EventAnswerProgress, Data: AnswerProgressPayload{
		QuestionIndex: q.Index,
		Answered:      s.answeredCount(),
		Connected:     s.connectedCount(),
	}})

	// The authoritative all-answered check: if every connected player has
	// answered, cancel the pending question timer and reveal now. A timer
	// firing microseconds later finds the phase already revealed and drops.
	if s.allConnectedAnswered() {
		e.sched.Cancel(s.ID)
		e.revealLocked(s)
	}

	return nil
}

// ─── Presence ───────────────────────────────────────────────────────

// Disconnect detaches a connection from its player. The player record stays,
// keyed by the stable player id, so the same player can resume. When the last
// connected player leaves an active session, the session auto-pauses and an
// expiry timer is armed.
func (e *Engine) Disconnect(sessionID, playerID uuid.UUID, connID string) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.player(playerID)
	if p == nil {
		return
	}
	// A stale close from a connection that was already replaced by a
	// reconnect must not mark the player offline.
	if connID != "" && p.ConnID != connID {
		return
	}

	p.ConnID = ""
	p.Connected = false
	p.LastActiveAt = e.clock.Now()

	e.bcast.ToRoom(s.ID, Event{Type: EventPlayerLeft, Data: PresencePayload{
		PlayerID: p.ID, Name: p.Name, RoomSize: s.connectedCount(),
	}})

	if s.connectedCount() > 0 {
		return
	}

	switch s.Status {
	case model.SessionStatusActive:
		e.pauseLocked(s, true)
	case model.SessionStatusCountdown:
		// Everybody left before the game began; fall back to waiting.
		e.sched.Cancel(s.ID)
		s.Status = model.SessionStatusWaiting
		s.CountdownRemaining = 0
	case model.SessionStatusPaused:
		// A host-paused room abandoned by every player is still bounded
		// by the grace window.
		e.sched.Arm(s.ID, TimerExpiry, e.opts.GraceWindow, e.timerFunc(s.ID))
	}
}

// RequestState pushes a full current-state snapshot to one player.
func (e *Engine) RequestState(sessionID, playerID uuid.UUID) error {
	return e.withSession(sessionID, func(s *Session) error {
		p := s.player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		e.pushStateLocked(s, p)
		return nil
	})
}

// ─── Admin views ────────────────────────────────────────────────────

// Describe returns a point-in-time snapshot of one live session.
func (e *Engine) Describe(sessionID uuid.UUID) (*model.SessionSnapshot, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// ListSessions snapshots every live session for the control plane.
func (e *Engine) ListSessions() []*model.SessionSnapshot {
	live := e.store.List()
	out := make([]*model.SessionSnapshot, 0, len(live))
	for _, s := range live {
		s.mu.Lock()
		out = append(out, s.snapshotLocked())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Shutdown cancels all timers and pushes a final best-effort snapshot of
// every live session.
func (e *Engine) Shutdown() {
	for _, s := range e.store.List() {
		e.sched.Cancel(s.ID)
		s.mu.Lock()
		e.enqueueSnapshot(s.snapshotLocked())
		s.mu.Unlock()
	}
}

// ─── Transitions (callers hold s.mu) ────────────────────────────────

func (e *Engine) beginCountdownLocked(s *Session) {
	s.Status = model.SessionStatusCountdown
	s.CountdownRemaining = e.opts.CountdownSeconds

	e.bcast.ToRoom(s.ID, Event{Type: EventCountdown, Data: CountdownPayload{SecondsRemaining: s.CountdownRemaining}})
	e.sched.Arm(s.ID, TimerCountdown, time.Second, e.timerFunc(s.ID))
}

func (e *Engine) countdownTickLocked(s *Session) {
	s.CountdownRemaining--
	if s.CountdownRemaining > 0 {
		e.bcast.ToRoom(s.ID, Event{Type: EventCountdown, Data: CountdownPayload{SecondsRemaining: s.CountdownRemaining}})
		e.sched.Arm(s.ID, TimerCountdown, time.Second, e.timerFunc(s.ID))
		return
	}

	s.Status = model.SessionStatusActive
	s.StartedAt = e.clock.Now()
	e.bcast.ToRoom(s.ID, Event{Type: EventGameStarted, Data: GameStartedPayload{TotalQuestions: len(s.Questions)}})
	e.enqueueSnapshot(s.snapshotLocked())
	e.serveNextLocked(s)
}

func (e *Engine) serveNextLocked(s *Session) {
	if s.CurrentIndex >= len(s.Questions) {
		e.completeLocked(s)
		return
	}

	s.CurrentIndex++
	s.Phase = PhaseQuestionOpen
	q := s.currentQuestion()
	q.AskedAt = e.clock.Now()

	e.bcast.ToRoom(s.ID, Event{Type: EventQuestion, Data: questionPayload(s, q)})
	e.sched.Arm(s.ID, TimerQuestion, q.TimeLimit, e.timerFunc(s.ID))
}

func (e *Engine) revealLocked(s *Session) {
	// Single reveal per question index: the phase guard makes this a no-op
	// for whichever of (timer, all-answered) loses the race.
	if s.Status != model.SessionStatusActive || s.Phase != PhaseQuestionOpen {
		return
	}
	q := s.currentQuestion()
	if q == nil {
		return
	}

	s.Phase = PhaseRevealed
	e.bcast.ToRoom(s.ID, Event{Type: EventAnswerRevealed, Data: RevealPayload{
		QuestionIndex: q.Index,
		CorrectIndex:  q.CorrectIndex,
		Explanation:   q.Explanation,
	}})
	e.enqueueSnapshot(s.snapshotLocked())
	e.sched.Arm(s.ID, TimerNextQuestion, e.opts.RevealDelay, e.timerFunc(s.ID))
}

func (e *Engine) pauseLocked(s *Session, auto bool) {
	e.sched.Cancel(s.ID)

	s.pausedRemaining = 0
	if s.Phase == PhaseQuestionOpen {
		if q := s.currentQuestion(); q != nil {
			s.pausedRemaining = q.TimeLimit - e.clock.Now().Sub(q.AskedAt)
		}
	}

	s.Status = model.SessionStatusPaused
	s.autoPaused = auto

	e.bcast.ToRoom(s.ID, Event{Type: EventGamePaused, Data: nil})
	e.enqueueSnapshot(s.snapshotLocked())

	if auto {
		e.sched.Arm(s.ID, TimerExpiry, e.opts.GraceWindow, e.timerFunc(s.ID))
	}

	e.log.Info().
		Str("session_id", s.ID.String()).
		Bool("auto", auto).
		Msg("session paused")
}

func (e *Engine) resumeLocked(s *Session) {
	e.sched.Cancel(s.ID)
	s.Status = model.SessionStatusActive
	s.autoPaused = false

	e.bcast.ToRoom(s.ID, Event{Type: EventGameResumed, Data: nil})

	if s.CurrentIndex == 0 {
		// Paused out of the countdown window; restart the countdown.
		e.beginCountdownLocked(s)
		return
	}

	q := s.currentQuestion()
	switch s.Phase {
	case PhaseQuestionOpen:
		remaining := s.pausedRemaining
		if remaining <= 0 {
			e.revealLocked(s)
			return
		}
		// Shift AskedAt so elapsed-time scoring ignores the paused span.
		q.AskedAt = e.clock.Now().Add(remaining - q.TimeLimit)
		e.bcast.ToRoom(s.ID, Event{Type: EventQuestion, Data: questionPayload(s, q)})
		e.sched.Arm(s.ID, TimerQuestion, remaining, e.timerFunc(s.ID))
	case PhaseRevealed:
		e.sched.Arm(s.ID, TimerNextQuestion, e.opts.RevealDelay, e.timerFunc(s.ID))
	}
}

func (e *Engine) completeLocked(s *Session) {
	e.sched.Cancel(s.ID)
	s.Status = model.SessionStatusCompleted
	s.EndedAt = e.clock.Now()

	finals := make([]FinalScore, 0, len(s.Players))
	for _, p := range s.Players {
		finals = append(finals, FinalScore{PlayerID: p.ID, Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(finals, func(i, j int) bool { return finals[i].Score > finals[j].Score })
	for i := range finals {
		finals[i].Position = i + 1
	}

	duration := 0
	if !s.StartedAt.IsZero() {
		duration = int(s.EndedAt.Sub(s.StartedAt).Seconds())
	}

	e.bcast.ToRoom(s.ID, Event{Type: EventGameCompleted, Data: GameCompletedPayload{
		FinalScores:     finals,
		TotalQuestions:  len(s.Questions),
		DurationSeconds: duration,
	}})
	e.bcast.ToRoom(s.ID, Event{Type: EventSessionEnded, Data: nil})

	e.enqueueSnapshot(s.snapshotLocked())
	e.store.Delete(s.ID)

	e.log.Info().
		Str("session_id", s.ID.String()).
		Int("players", len(s.Players)).
		Int("duration_s", duration).
		Msg("session completed")
}

// ─── Timer dispatch ─────────────────────────────────────────────────

// timerFunc adapts a timer firing into a synthetic engine event for one
// session. State is re-validated under the session lock; a stale firing
// (state moved on since arming) is a no-op.
func (e *Engine) timerFunc(sessionID uuid.UUID) func(kind TimerKind) {
	return func(kind TimerKind) {
		s, ok := e.store.Get(sessionID)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		switch kind {
		case TimerCountdown:
			if s.Status == model.SessionStatusCountdown {
				e.countdownTickLocked(s)
			}
		case TimerQuestion:
			e.revealLocked(s)
		case TimerNextQuestion:
			if s.Status == model.SessionStatusActive && s.Phase == PhaseRevealed {
				e.serveNextLocked(s)
			}
		case TimerExpiry:
			if s.Status == model.SessionStatusPaused && s.connectedCount() == 0 {
				e.completeLocked(s)
			}
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────

func (e *Engine) withSession(sessionID uuid.UUID, fn func(s *Session) error) error {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func (e *Engine) pushStateLocked(s *Session, p *Player) {
	state := StatePayload{
		SessionID:        s.ID,
		Status:           string(s.Status),
		CountdownSeconds: s.CountdownRemaining,
		Tally:            s.tally(),
	}
	if s.Status == model.SessionStatusActive || s.Status == model.SessionStatusPaused {
		state.Phase = string(s.Phase)
		if q := s.currentQuestion(); q != nil {
			qp := questionPayload(s, q)
			state.Question = &qp
			if s.Phase == PhaseRevealed {
				idx := q.CorrectIndex
				state.CorrectIndex = &idx
			}
			if a := p.AnswerFor(q.Index); a != nil {
				state.OwnAnswer = &OwnAnswer{
					QuestionIndex: a.QuestionIndex,
					ChoiceIndex:   a.ChoiceIndex,
					Correct:       a.Correct,
					Points:        a.Points,
				}
			}
		}
	}
	e.bcast.ToPlayer(s.ID, p.ID, Event{Type: EventState, Data: state})
}

func questionPayload(s *Session, q *Question) QuestionPayload {
	return QuestionPayload{
		Index:          q.Index,
		TotalQuestions: len(s.Questions),
		Category:       q.Category,
		Difficulty:     q.Difficulty,
		Text:           q.Text,
		Choices:        q.Choices,
		TimeLimitMs:    int(q.TimeLimit.Milliseconds()),
		AskedAt:        q.AskedAt,
	}
}

// enqueueSnapshot hands the snapshot to the persister without blocking the
// critical section. Persistence failures never reach the game path.
func (e *Engine) enqueueSnapshot(snap *model.SessionSnapshot) {
	if e.persist == nil {
		return
	}
	go e.persist.SaveSnapshot(snap)
}

// generateJoinCode returns a 6-digit code unused by any live session.
func (e *Engine) generateJoinCode() string {
	for {
		code := fmt.Sprintf("%06d", rand.Intn(1000000))
		if _, taken := e.store.GetByCode(code); !taken {
			return code
		}
	}
}
