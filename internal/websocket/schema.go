package websocket

import "github.com/quizforge/attemptd/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload carries every client action; unused fields stay zero.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Option *int   `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventTick    Event = "tick"
	EventGraded  Event = "graded"
	EventPong    Event = "pong"
)

// TickEvent is the once-per-second countdown heartbeat.
type TickEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// GradedEvent announces the final graded result, whether the student
// submitted or the timer ran out.
type GradedEvent struct {
	Event   Event               `json:"event"`
	Trigger string              `json:"trigger"`
	Result  *model.GradedResult `json:"result"`
	Band    string              `json:"band"`
}

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
