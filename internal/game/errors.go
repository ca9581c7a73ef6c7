package game

import "errors"

// Engine error taxonomy. Handlers map these onto response codes; none of
// them ever leaves session state partially mutated.
var (
	// ErrSessionNotFound is returned when the session id or join code does
	// not resolve to a live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionUnavailable is returned when joining a full or already
	// started session, or starting one with no players.
	ErrSessionUnavailable = errors.New("session unavailable")

	// ErrSessionClosed is returned for any mutation of a completed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidSubmission is returned for malformed or out-of-range
	// submissions, and for answers outside the question-open phase.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrDuplicateAnswer is the idempotency guard: the player already has an
	// answer for the current question. A notice, not a hard failure.
	ErrDuplicateAnswer = errors.New("already answered")

	// ErrPlayerNotFound is returned when a player id is not part of the
	// session.
	ErrPlayerNotFound = errors.New("player not found")
)
