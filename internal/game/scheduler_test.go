package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func newTestScheduler() (*Scheduler, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewScheduler(clock, zerolog.Nop()), clock
}

// collectFires returns a fire func that sends kinds on the channel.
func collectFires() (func(TimerKind), chan TimerKind) {
	ch := make(chan TimerKind, 8)
	return func(kind TimerKind) { ch <- kind }, ch
}

func expectFire(t *testing.T, ch chan TimerKind, want TimerKind) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("fired %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timer %q never fired", want)
	}
}

func expectNoFire(t *testing.T, ch chan TimerKind) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected fire %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerFires(t *testing.T) {
	sched, clock := newTestScheduler()
	fire, fired := collectFires()
	id := uuid.New()

	sched.Arm(id, TimerQuestion, 30*time.Second, fire)

	clock.Advance(29 * time.Second)
	expectNoFire(t, fired)

	clock.Advance(time.Second)
	expectFire(t, fired, TimerQuestion)

	if _, ok := sched.Armed(id); ok {
		t.Fatal("timer still armed after firing")
	}
}

func TestSchedulerCancel(t *testing.T) {
	sched, clock := newTestScheduler()
	fire, fired := collectFires()
	id := uuid.New()

	sched.Arm(id, TimerQuestion, 10*time.Second, fire)
	sched.Cancel(id)

	clock.Advance(time.Minute)
	expectNoFire(t, fired)
}

func TestSchedulerArmReplaces(t *testing.T) {
	sched, clock := newTestScheduler()
	fire, fired := collectFires()
	id := uuid.New()

	sched.Arm(id, TimerQuestion, 10*time.Second, fire)
	sched.Arm(id, TimerNextQuestion, 5*time.Second, fire)

	if kind, ok := sched.Armed(id); !ok || kind != TimerNextQuestion {
		t.Fatalf("Armed() = %q, %v, want next_question timer", kind, ok)
	}

	// Advancing past both deadlines fires the replacement exactly once.
	clock.Advance(time.Minute)
	expectFire(t, fired, TimerNextQuestion)
	expectNoFire(t, fired)
}

func TestSchedulerIndependentSessions(t *testing.T) {
	sched, clock := newTestScheduler()
	fireA, firedA := collectFires()
	fireB, firedB := collectFires()

	sched.Arm(uuid.New(), TimerCountdown, time.Second, fireA)
	sched.Arm(uuid.New(), TimerExpiry, 2*time.Second, fireB)

	clock.Advance(time.Second)
	expectFire(t, firedA, TimerCountdown)
	expectNoFire(t, firedB)

	clock.Advance(time.Second)
	expectFire(t, firedB, TimerExpiry)
}
