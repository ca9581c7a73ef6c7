package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionJoin   Action = "join"
	ActionAnswer Action = "answer"
	ActionState  Action = "state"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// JoinRequest must be the first message on a player stream. PlayerID is set
// on reconnect to reclaim an existing seat.
type JoinRequest struct {
	Action    Action `json:"action"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	PlayerID  string `json:"player_id,omitempty"`
	DeviceTag string `json:"device_tag,omitempty"`
}

// AnswerRequest submits one choice for the currently open question.
type AnswerRequest struct {
	Action      Action `json:"action"`
	ChoiceIndex int    `json:"choice_index"`
}

// StateRequest asks for a full state resync.
type StateRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
//
// Game events are produced by the engine and fanned out by the hub; their
// shapes live in the game package. Only the transport-level responses are
// defined here.

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
)

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
