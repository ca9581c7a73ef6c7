package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// TimerKind names what a session timer will do when it fires.
type TimerKind string

const (
	// TimerCountdown ticks the pre-game countdown once per second.
	TimerCountdown TimerKind = "countdown"
	// TimerQuestion fires the reveal at the question time limit.
	TimerQuestion TimerKind = "question"
	// TimerNextQuestion fires "serve next" after the post-reveal delay.
	TimerNextQuestion TimerKind = "next_question"
	// TimerExpiry force-completes a session paused with nobody connected.
	TimerExpiry TimerKind = "expiry"
)

type armedTimer struct {
	kind  TimerKind
	seq   uint64
	timer clockwork.Timer
	stop  chan struct{}
}

// Scheduler owns at most one active timer handle per session. Arm always
// cancels any existing timer for the session first; a fired timer whose
// sequence no longer matches the armed one is discarded. Built on an
// injectable clock so tests drive time deterministically.
type Scheduler struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	timers map[uuid.UUID]*armedTimer
	seq    uint64
	log    zerolog.Logger
}

// NewScheduler creates a Scheduler on the given clock.
func NewScheduler(clock clockwork.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[uuid.UUID]*armedTimer),
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Arm schedules fire(kind) after delay, replacing any timer currently armed
// for the session. fire runs on its own goroutine; callers re-validate
// session state under the session lock before acting on it.
func (s *Scheduler) Arm(sessionID uuid.UUID, kind TimerKind, delay time.Duration, fire func(kind TimerKind)) {
	s.mu.Lock()
	s.cancelLocked(sessionID)

	s.seq++
	armed := &armedTimer{
		kind:  kind,
		seq:   s.seq,
		timer: s.clock.NewTimer(delay),
		stop:  make(chan struct{}),
	}
	s.timers[sessionID] = armed
	s.mu.Unlock()

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Str("kind", string(kind)).
		Dur("delay", delay).
		Msg("timer armed")

	go func() {
		select {
		case <-armed.stop:
			return
		case <-armed.timer.Chan():
		}

		s.mu.Lock()
		current, ok := s.timers[sessionID]
		if !ok || current.seq != armed.seq {
			// Cancelled or replaced between firing and this check.
			s.mu.Unlock()
			return
		}
		delete(s.timers, sessionID)
		s.mu.Unlock()

		fire(kind)
	}()
}

// Cancel stops and removes the session's timer, if any.
func (s *Scheduler) Cancel(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(sessionID)
}

func (s *Scheduler) cancelLocked(sessionID uuid.UUID) {
	armed, ok := s.timers[sessionID]
	if !ok {
		return
	}
	// Remove the map entry first: if the timer fired concurrently, the
	// waiter's sequence check fails and the event is dropped.
	delete(s.timers, sessionID)
	armed.timer.Stop()
	close(armed.stop)

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Str("kind", string(armed.kind)).
		Msg("timer cancelled")
}

// Armed reports the kind of the currently armed timer for a session, if any.
func (s *Scheduler) Armed(sessionID uuid.UUID) (TimerKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if armed, ok := s.timers[sessionID]; ok {
		return armed.kind, true
	}
	return "", false
}
