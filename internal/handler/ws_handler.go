package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizforge/attemptd/internal/grading"
	"github.com/quizforge/attemptd/internal/middleware"
	"github.com/quizforge/attemptd/internal/service"
	"github.com/quizforge/attemptd/internal/session"
	ws "github.com/quizforge/attemptd/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live attempt: countdown ticks out, answer and submit
// actions in, and the graded result when the attempt ends either way.
type WSHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/exams/:exam_id/attempt/stream
// Upgrades to WebSocket for countdown ticks, live answering, and grading.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID

	sess, err := h.attempts.GetSession(examID, studentID)
	if err != nil {
		ws.WriteError(conn, "no active attempt for this exam")
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// All writes funnel through writePump: gorilla connections allow only
	// one concurrent writer, and ticks arrive off the reader goroutine.
	out := make(chan interface{}, 16)
	closed := make(chan struct{})
	go h.writePump(conn, out, closed)
	go h.forwardEvents(sess, out, closed)

	// Immediate tick so the client can render the countdown before the
	// first scheduled one arrives.
	h.send(out, closed, ws.TickEvent{
		Event:            ws.EventTick,
		RemainingSeconds: remainingSeconds(sess),
	})

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(out, closed, examID, studentID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(out, closed, wsLog, examID, studentID)
		case ws.ActionPing:
			h.send(out, closed, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			h.send(out, closed, ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
	close(closed)
}

func (h *WSHandler) writePump(conn *websocket.Conn, out <-chan interface{}, closed <-chan struct{}) {
	for {
		select {
		case v := <-out:
			if err := ws.WriteTyped(conn, v); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// forwardEvents relays countdown ticks and, once the attempt completes,
// the graded result.
func (h *WSHandler) forwardEvents(sess *session.Session, out chan<- interface{}, closed <-chan struct{}) {
	for {
		select {
		case rem := <-sess.Ticks():
			h.send(out, closed, ws.TickEvent{Event: ws.EventTick, RemainingSeconds: rem})

		case <-sess.Done():
			res := sess.Result()
			h.send(out, closed, ws.GradedEvent{
				Event:   ws.EventGraded,
				Trigger: string(sess.SubmitTrigger()),
				Result:  res,
				Band:    string(grading.BandFor(res.Percentage)),
			})
			return

		case <-closed:
			return
		}
	}
}

func (h *WSHandler) send(out chan<- interface{}, closed <-chan struct{}, v interface{}) {
	select {
	case out <- v:
	case <-closed:
	}
}

func (h *WSHandler) handleAnswer(out chan<- interface{}, closed <-chan struct{}, examID uuid.UUID, studentID int, msg *ws.RequestPayload) {
	if msg.QID == "" || msg.Option == nil {
		h.send(out, closed, ws.ErrorResponse{Event: ws.EventError, Error: "q_id and option are required"})
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		h.send(out, closed, ws.ErrorResponse{Event: ws.EventError, Error: "invalid q_id format"})
		return
	}

	if err := h.attempts.SetAnswer(examID, studentID, questionID, *msg.Option); err != nil {
		h.send(out, closed, ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}
	h.send(out, closed, ws.SuccessResponse{Event: ws.EventSuccess, Status: "saved"})
}

// handleSubmit triggers the submission; the graded event itself comes from
// forwardEvents once the session settles, so both manual and timeout
// submissions reach the client the same way.
func (h *WSHandler) handleSubmit(out chan<- interface{}, closed <-chan struct{}, wsLog zerolog.Logger, examID uuid.UUID, studentID int) {
	if _, err := h.attempts.Submit(context.Background(), examID, studentID); err != nil {
		wsLog.Error().Err(err).Msg("Submit over WebSocket failed")
		h.send(out, closed, ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
	}
}

func remainingSeconds(sess *session.Session) int64 {
	rem := sess.Remaining()
	return int64((rem + time.Second - 1) / time.Second)
}
