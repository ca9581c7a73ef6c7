package game

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// ─── Test doubles ───────────────────────────────────────────────────

type sentEvent struct {
	scope    string
	playerID uuid.UUID
	evt      Event
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *fakeBroadcaster) ToRoom(_ uuid.UUID, evt Event) {
	b.record("room", uuid.Nil, evt)
}

func (b *fakeBroadcaster) ToPlayer(_, playerID uuid.UUID, evt Event) {
	b.record("player", playerID, evt)
}

func (b *fakeBroadcaster) ToObservers(_ uuid.UUID, evt Event) {
	b.record("observer", uuid.Nil, evt)
}

func (b *fakeBroadcaster) record(scope string, playerID uuid.UUID, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{scope: scope, playerID: playerID, evt: evt})
}

func (b *fakeBroadcaster) count(typ EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.evt.Type == typ {
			n++
		}
	}
	return n
}

func (b *fakeBroadcaster) last(typ EventType) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].evt.Type == typ {
			return b.events[i].evt, true
		}
	}
	return Event{}, false
}

// lastSent is like last but keeps the delivery scope.
func (b *fakeBroadcaster) lastSent(typ EventType) (sentEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].evt.Type == typ {
			return b.events[i], true
		}
	}
	return sentEvent{}, false
}

func (b *fakeBroadcaster) lastTo(playerID uuid.UUID, typ EventType) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].playerID == playerID && b.events[i].evt.Type == typ {
			return b.events[i].evt, true
		}
	}
	return Event{}, false
}

// stubQuestions serves bare questions so per-question limits and points fall
// back to the session settings.
type stubQuestions struct{}

func (stubQuestions) Load(_ context.Context, count int, _ string, _ []string) ([]model.Question, error) {
	qs := make([]model.Question, count)
	for i := range qs {
		qs[i] = model.Question{
			Category: "General",
			Text:     fmt.Sprintf("question %d", i+1),
			Choices:  []string{"a", "b", "c", "d"},
			// Choice 1 is always right in the stub bank.
			CorrectIndex: 1,
		}
	}
	return qs, nil
}

// ─── Harness ────────────────────────────────────────────────────────

type engineHarness struct {
	engine *Engine
	clock  *clockwork.FakeClock
	store  *MemoryStore
	sched  *Scheduler
	bcast  *fakeBroadcaster
	opts   Options
}

func newHarness(opts Options) *engineHarness {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore()
	sched := NewScheduler(clock, zerolog.Nop())
	bcast := &fakeBroadcaster{}
	engine := NewEngine(store, sched, clock, bcast, stubQuestions{}, nil, opts, zerolog.Nop())
	return &engineHarness{engine: engine, clock: clock, store: store, sched: sched, bcast: bcast, opts: opts}
}

func defaultOpts() Options {
	return Options{
		CountdownSeconds: 3,
		RevealDelay:      2 * time.Second,
		GraceWindow:      10 * time.Minute,
	}
}

func testSettings() model.SessionSettings {
	return model.SessionSettings{
		MaxPlayers:       8,
		QuestionCount:    2,
		Difficulty:       model.DifficultyAny,
		TimeLimitSeconds: 30,
		Points:           100,
		TimeBonus:        true,
	}
}

// waitFor polls until cond holds. Timer firings run on their own goroutines;
// every cond below reads state through the session lock, so a true result
// means the whole transition, re-arm included, has committed.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func (h *engineHarness) status(id uuid.UUID) model.SessionStatus {
	s, ok := h.store.Get(id)
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

func (h *engineHarness) phase(id uuid.UUID) Phase {
	s, ok := h.store.Get(id)
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Phase
}

func (h *engineHarness) currentIndex(id uuid.UUID) int {
	s, ok := h.store.Get(id)
	if !ok {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CurrentIndex
}

func (h *engineHarness) countdownRemaining(id uuid.UUID) int {
	s, ok := h.store.Get(id)
	if !ok {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CountdownRemaining
}

func (h *engineHarness) create(t *testing.T) *Session {
	t.Helper()
	s, err := h.engine.CreateSession(context.Background(), 1, testSettings())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func (h *engineHarness) join(t *testing.T, id uuid.UUID, name string) *Player {
	t.Helper()
	p, err := h.engine.Join(id, name, "", nil, "conn-"+name)
	if err != nil {
		t.Fatalf("Join %s: %v", name, err)
	}
	return p
}

// startGame drives the countdown to completion and leaves question 1 open.
func (h *engineHarness) startGame(t *testing.T, id uuid.UUID) {
	t.Helper()
	if err := h.engine.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < h.opts.CountdownSeconds+1 && h.status(id) != model.SessionStatusActive; i++ {
		prev := h.countdownRemaining(id)
		h.clock.Advance(time.Second)
		waitFor(t, "countdown tick", func() bool {
			return h.status(id) == model.SessionStatusActive || h.countdownRemaining(id) < prev
		})
	}
	if h.status(id) != model.SessionStatusActive {
		t.Fatal("countdown never completed")
	}
	if h.currentIndex(id) != 1 || h.phase(id) != PhaseQuestionOpen {
		t.Fatalf("expected question 1 open, got index %d phase %q", h.currentIndex(id), h.phase(id))
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────

func TestCreateSessionAppliesSettingDefaults(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)

	if len(s.JoinCode) != 6 {
		t.Fatalf("join code %q, want 6 digits", s.JoinCode)
	}
	if got, err := h.engine.ResolveCode(s.JoinCode); err != nil || got != s.ID {
		t.Fatalf("ResolveCode = %v, %v", got, err)
	}
	for _, q := range s.Questions {
		if q.TimeLimit != 30*time.Second {
			t.Errorf("question %d limit %v, want settings fallback 30s", q.Index, q.TimeLimit)
		}
		if q.Points != 100 {
			t.Errorf("question %d points %d, want settings fallback 100", q.Index, q.Points)
		}
	}
}

// The create-side snapshot must be taken before the session is published;
// after Put the session is visible to concurrent joins and reads of it need
// the session lock. Meaningful under the race detector.
func TestCreateSessionSnapshotConcurrentJoin(t *testing.T) {
	h := newHarness(defaultOpts())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n := 0
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, s := range h.store.List() {
				n++
				// Join errors (full room) are irrelevant here.
				h.engine.Join(s.ID, fmt.Sprintf("p%d", n), "", nil, fmt.Sprintf("conn-%d", n))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		h.create(t)
	}
	close(done)
	wg.Wait()
}

func TestJoinAutostartThreshold(t *testing.T) {
	opts := defaultOpts()
	opts.AutostartMinPlayers = 2
	h := newHarness(opts)
	s := h.create(t)

	h.join(t, s.ID, "ada")
	if h.status(s.ID) != model.SessionStatusWaiting {
		t.Fatal("countdown began below the threshold")
	}

	h.join(t, s.ID, "grace")
	if h.status(s.ID) != model.SessionStatusCountdown {
		t.Fatal("expected countdown at the threshold")
	}
	if evt, ok := h.bcast.last(EventCountdown); !ok {
		t.Fatal("no countdown event")
	} else if evt.Data.(CountdownPayload).SecondsRemaining != 3 {
		t.Fatalf("first tick %+v, want 3 seconds", evt.Data)
	}
}

func TestReconnectCountsTowardAutostart(t *testing.T) {
	opts := defaultOpts()
	opts.AutostartMinPlayers = 2
	h := newHarness(opts)
	s := h.create(t)

	ada := h.join(t, s.ID, "ada")
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")
	h.join(t, s.ID, "grace")
	if h.status(s.ID) != model.SessionStatusWaiting {
		t.Fatal("countdown began with one connected player")
	}

	// ada's return brings the room back to the threshold.
	if _, err := h.engine.Join(s.ID, "ada", "", &ada.ID, "conn-ada-2"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if h.status(s.ID) != model.SessionStatusCountdown {
		t.Fatal("reconnect did not trigger the countdown")
	}
}

func TestCountdownServesFirstQuestion(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	h.join(t, s.ID, "ada")

	h.startGame(t, s.ID)

	if h.bcast.count(EventGameStarted) != 1 {
		t.Fatal("expected one gameStarted event")
	}
	evt, ok := h.bcast.last(EventQuestion)
	if !ok {
		t.Fatal("no question event")
	}
	qp := evt.Data.(QuestionPayload)
	if qp.Index != 1 || qp.TotalQuestions != 2 || qp.TimeLimitMs != 30000 {
		t.Fatalf("question payload %+v", qp)
	}
}

func TestLateJoinRejected(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	if _, err := h.engine.Join(s.ID, "late", "", nil, "conn-late"); err != ErrSessionUnavailable {
		t.Fatalf("Join = %v, want ErrSessionUnavailable", err)
	}
}

func TestJoinRejectedWhenFull(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	s.Settings.MaxPlayers = 1
	h.join(t, s.ID, "ada")

	if _, err := h.engine.Join(s.ID, "overflow", "", nil, "conn-o"); err != ErrSessionUnavailable {
		t.Fatalf("Join = %v, want ErrSessionUnavailable", err)
	}
}

// ─── Answer intake ──────────────────────────────────────────────────

func TestSubmitAnswerScoresWithTimeBonus(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)

	h.clock.Advance(5 * time.Second)
	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	evt, ok := h.bcast.lastTo(ada.ID, EventAnswerResult)
	if !ok {
		t.Fatal("no answerResult for answering player")
	}
	res := evt.Data.(AnswerResultPayload)
	if !res.Correct || res.Points != 141 || res.RunningTotal != 141 {
		t.Fatalf("answer result %+v, want 141 points", res)
	}
	if res.CorrectIndex != 1 {
		t.Fatalf("answer result must carry the correct index, got %d", res.CorrectIndex)
	}

	update, ok := h.bcast.last(EventScoreUpdate)
	if !ok {
		t.Fatal("no scoreUpdate broadcast")
	}
	for _, row := range update.Data.(ScoreUpdatePayload).Tally {
		if row.PlayerID == ada.ID && (!row.Answered || row.Score != 141) {
			t.Fatalf("tally row %+v", row)
		}
	}
}

func TestAnswerProgressTicksObservers(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	grace := h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)

	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	sent, ok := h.bcast.lastSent(EventAnswerProgress)
	if !ok {
		t.Fatal("no answerProgress tick")
	}
	if sent.scope != "observer" {
		t.Fatalf("answerProgress scope %q, want observer side channel", sent.scope)
	}
	tick := sent.evt.Data.(AnswerProgressPayload)
	if tick.QuestionIndex != 1 || tick.Answered != 1 || tick.Connected != 2 {
		t.Fatalf("tick %+v, want 1 of 2 answered on question 1", tick)
	}

	h.engine.SubmitAnswer(s.ID, grace.ID, 0)
	sent, _ = h.bcast.lastSent(EventAnswerProgress)
	if tick := sent.evt.Data.(AnswerProgressPayload); tick.Answered != 2 {
		t.Fatalf("tick %+v after second answer, want 2 answered", tick)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)

	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 0); err != ErrDuplicateAnswer {
		t.Fatalf("second answer = %v, want ErrDuplicateAnswer", err)
	}

	evt, _ := h.bcast.lastTo(ada.ID, EventAnswerResult)
	if evt.Data.(AnswerResultPayload).RunningTotal != 150 {
		t.Fatal("score changed after duplicate answer")
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")

	// Before the game starts nothing is open.
	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != ErrInvalidSubmission {
		t.Fatalf("pre-game answer = %v, want ErrInvalidSubmission", err)
	}

	h.startGame(t, s.ID)

	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 9); err != ErrInvalidSubmission {
		t.Fatalf("out-of-range choice = %v, want ErrInvalidSubmission", err)
	}
	if err := h.engine.SubmitAnswer(s.ID, uuid.New(), 1); err != ErrPlayerNotFound {
		t.Fatalf("unknown player = %v, want ErrPlayerNotFound", err)
	}
}

// ─── Reveal and progression ─────────────────────────────────────────

func TestAllAnsweredRevealsEarly(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	grace := h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)

	h.engine.SubmitAnswer(s.ID, ada.ID, 1)
	if h.phase(s.ID) != PhaseQuestionOpen {
		t.Fatal("revealed before everyone answered")
	}

	h.engine.SubmitAnswer(s.ID, grace.ID, 0)
	if h.phase(s.ID) != PhaseRevealed {
		t.Fatal("expected reveal once everyone answered")
	}
	if kind, ok := h.sched.Armed(s.ID); !ok || kind != TimerNextQuestion {
		t.Fatalf("armed timer %q, want next question delay", kind)
	}

	// The cancelled question timer must not produce a second reveal.
	if h.bcast.count(EventAnswerRevealed) != 1 {
		t.Fatalf("reveal count %d, want 1", h.bcast.count(EventAnswerRevealed))
	}

	h.clock.Advance(h.opts.RevealDelay)
	waitFor(t, "next question", func() bool { return h.currentIndex(s.ID) == 2 })
	if h.phase(s.ID) != PhaseQuestionOpen {
		t.Fatal("question 2 not open")
	}
}

func TestQuestionTimesOutIntoReveal(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	h.clock.Advance(30 * time.Second)
	waitFor(t, "timeout reveal", func() bool { return h.phase(s.ID) == PhaseRevealed })

	evt, _ := h.bcast.last(EventAnswerRevealed)
	rp := evt.Data.(RevealPayload)
	if rp.QuestionIndex != 1 || rp.CorrectIndex != 1 {
		t.Fatalf("reveal payload %+v", rp)
	}
}

func TestGameCompletesAfterLastQuestion(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	grace := h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)
	id := s.ID

	// Question 1: ada right, grace wrong.
	h.engine.SubmitAnswer(id, ada.ID, 1)
	h.engine.SubmitAnswer(id, grace.ID, 0)
	h.clock.Advance(h.opts.RevealDelay)
	waitFor(t, "question 2", func() bool { return h.currentIndex(id) == 2 })

	// Question 2: both right, grace faster.
	h.engine.SubmitAnswer(id, grace.ID, 1)
	h.clock.Advance(10 * time.Second)
	h.engine.SubmitAnswer(id, ada.ID, 1)
	h.clock.Advance(h.opts.RevealDelay)
	waitFor(t, "completion", func() bool { return h.status(id) == "" })

	evt, ok := h.bcast.last(EventGameCompleted)
	if !ok {
		t.Fatal("no gameCompleted event")
	}
	final := evt.Data.(GameCompletedPayload)
	if final.TotalQuestions != 2 || len(final.FinalScores) != 2 {
		t.Fatalf("completed payload %+v", final)
	}
	// ada: 150 + 133; grace: 0 + 150.
	if final.FinalScores[0].PlayerID != ada.ID || final.FinalScores[0].Position != 1 {
		t.Fatalf("leaderboard head %+v", final.FinalScores[0])
	}
	if final.FinalScores[0].Score != 283 || final.FinalScores[1].Score != 150 {
		t.Fatalf("scores %d/%d, want 283/150", final.FinalScores[0].Score, final.FinalScores[1].Score)
	}
	if h.bcast.count(EventSessionEnded) != 1 {
		t.Fatal("expected sessionEnded after completion")
	}
}

// ─── Presence, pause, expiry ────────────────────────────────────────

func TestReconnectPushesStateWithOwnAnswer(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)

	h.engine.SubmitAnswer(s.ID, ada.ID, 1)
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")

	if _, err := h.engine.Join(s.ID, "ada", "", &ada.ID, "conn-ada-2"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	evt, ok := h.bcast.lastTo(ada.ID, EventState)
	if !ok {
		t.Fatal("no state push on reconnect")
	}
	state := evt.Data.(StatePayload)
	if state.Question == nil || state.Question.Index != 1 {
		t.Fatalf("state question %+v", state.Question)
	}
	if state.CorrectIndex != nil {
		t.Fatal("state leaked the correct index before reveal")
	}
	if state.OwnAnswer == nil || state.OwnAnswer.ChoiceIndex != 1 {
		t.Fatalf("own answer %+v", state.OwnAnswer)
	}

	joined, _ := h.bcast.lastTo(ada.ID, EventJoined)
	if !joined.Data.(JoinedPayload).Rejoined {
		t.Fatal("joined event not flagged as rejoin")
	}
}

func TestStaleDisconnectIgnoredAfterReconnect(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	if _, err := h.engine.Join(s.ID, "ada", "", &ada.ID, "conn-ada-2"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	// The old transport closes late; the player must stay connected.
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")

	if h.status(s.ID) != model.SessionStatusActive {
		t.Fatal("stale disconnect paused the session")
	}
}

func TestEmptyRoomAutoPausesThenExpires(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	h.engine.SubmitAnswer(s.ID, ada.ID, 1)
	// Single player answering reveals immediately; now everyone leaves.
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")

	if h.status(s.ID) != model.SessionStatusPaused {
		t.Fatal("expected auto-pause on empty room")
	}
	if kind, ok := h.sched.Armed(s.ID); !ok || kind != TimerExpiry {
		t.Fatalf("armed timer %q, want expiry", kind)
	}

	h.clock.Advance(h.opts.GraceWindow)
	waitFor(t, "grace expiry", func() bool { return h.status(s.ID) == "" })

	evt, ok := h.bcast.last(EventGameCompleted)
	if !ok {
		t.Fatal("no gameCompleted after expiry")
	}
	if got := evt.Data.(GameCompletedPayload).FinalScores[0].Score; got != 150 {
		t.Fatalf("expired session score %d, want existing 150 kept", got)
	}
}

func TestReconnectResumesAutoPausedSession(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	grace := h.join(t, s.ID, "grace")
	h.startGame(t, s.ID)

	h.clock.Advance(10 * time.Second)
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")
	h.engine.Disconnect(s.ID, grace.ID, "conn-grace")
	if h.status(s.ID) != model.SessionStatusPaused {
		t.Fatal("expected auto-pause")
	}

	// A long while passes before anyone comes back.
	h.clock.Advance(5 * time.Minute)
	if _, err := h.engine.Join(s.ID, "ada", "", &ada.ID, "conn-ada-2"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if h.status(s.ID) != model.SessionStatusActive {
		t.Fatal("expected auto-resume on reconnect")
	}

	// Scoring must not count the paused span: 10s elapsed of 30s.
	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	evt, _ := h.bcast.lastTo(ada.ID, EventAnswerResult)
	if got := evt.Data.(AnswerResultPayload).Points; got != 133 {
		t.Fatalf("points %d, want 133 for 10s effective elapsed", got)
	}
}

func TestCountdownAbortsWhenRoomEmpties(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")

	if err := h.engine.Start(s.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")

	if h.status(s.ID) != model.SessionStatusWaiting {
		t.Fatal("expected fall back to waiting")
	}
	if _, ok := h.sched.Armed(s.ID); ok {
		t.Fatal("countdown timer still armed")
	}
	h.clock.Advance(time.Minute)
	if h.bcast.count(EventGameStarted) != 0 {
		t.Fatal("game started in an empty room")
	}
}

func TestHostPauseAndResume(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	if err := h.engine.Pause(s.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != ErrInvalidSubmission {
		t.Fatalf("paused answer = %v, want ErrInvalidSubmission", err)
	}
	// A host pause with players still connected arms no expiry timer.
	if _, ok := h.sched.Armed(s.ID); ok {
		t.Fatal("timer armed during host pause")
	}

	if err := h.engine.Resume(s.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := h.engine.SubmitAnswer(s.ID, ada.ID, 1); err != nil {
		t.Fatalf("post-resume answer: %v", err)
	}
}

func TestHostPausedEmptyRoomExpires(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	ada := h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	if err := h.engine.Pause(s.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, ok := h.sched.Armed(s.ID); ok {
		t.Fatal("timer armed while paused with players present")
	}

	// The last player walks away from the host-paused room.
	h.engine.Disconnect(s.ID, ada.ID, "conn-ada")
	if kind, ok := h.sched.Armed(s.ID); !ok || kind != TimerExpiry {
		t.Fatalf("armed timer %q, want expiry", kind)
	}

	h.clock.Advance(h.opts.GraceWindow)
	waitFor(t, "grace expiry", func() bool { return h.status(s.ID) == "" })
	if h.bcast.count(EventGameCompleted) != 1 {
		t.Fatal("abandoned host-paused session never completed")
	}
}

// ─── End and reset ──────────────────────────────────────────────────

func TestEndFinalizesImmediately(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	if err := h.engine.End(s.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if h.bcast.count(EventGameCompleted) != 1 || h.bcast.count(EventSessionEnded) != 1 {
		t.Fatal("missing completion events")
	}
	if _, ok := h.store.Get(s.ID); ok {
		t.Fatal("completed session still live")
	}
	if err := h.engine.End(s.ID); err != ErrSessionNotFound {
		t.Fatalf("second End = %v, want ErrSessionNotFound", err)
	}
}

func TestResetIssuesFreshSession(t *testing.T) {
	h := newHarness(defaultOpts())
	s := h.create(t)
	h.join(t, s.ID, "ada")
	h.startGame(t, s.ID)

	fresh, err := h.engine.Reset(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if fresh.ID == s.ID || fresh.JoinCode == s.JoinCode {
		t.Fatal("reset reused the old identity")
	}
	if !reflect.DeepEqual(fresh.Settings, s.Settings) {
		t.Fatal("reset changed the settings")
	}
	if h.status(fresh.ID) != model.SessionStatusWaiting {
		t.Fatal("fresh session not waiting")
	}
	if _, ok := h.store.Get(s.ID); ok {
		t.Fatal("old session still live after reset")
	}
}
