package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/grading"
	"github.com/quizforge/attemptd/internal/middleware"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/quizforge/attemptd/internal/response"
	"github.com/quizforge/attemptd/internal/service"
	"github.com/quizforge/attemptd/internal/session"
	"github.com/quizforge/attemptd/internal/validator"
	"github.com/rs/zerolog"
)

// AttemptHandler exposes the attempt lifecycle over REST. The WebSocket
// stream covers the live countdown; everything here is request/response.
type AttemptHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempt
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	sess, err := h.attempts.StartAttempt(c.Request.Context(), examID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, sess.State())
}

// GetState godoc
// GET /api/v1/student/exams/:exam_id/attempt
func (h *AttemptHandler) GetState(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	state, err := h.attempts.State(c.Request.Context(), examID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GetPaper godoc
// GET /api/v1/student/exams/:exam_id/attempt/paper
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	paper, err := h.attempts.Paper(c.Request.Context(), examID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// SaveAnswer godoc
// PUT /api/v1/student/exams/:exam_id/attempt/answers
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.SetAnswer(examID, studentID, req.QuestionID, *req.OptionIndex); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/student/exams/:exam_id/attempt/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	res, err := h.attempts.Submit(c.Request.Context(), examID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"result": res,
		"band":   grading.BandFor(res.Percentage),
	})
}

// Reconcile godoc
// POST /api/v1/student/exams/:exam_id/attempt/reconcile
// Resolves an attempt left in SUBMITTING by an ambiguous store failure.
func (h *AttemptHandler) Reconcile(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	res, err := h.attempts.Reconcile(c.Request.Context(), examID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"result": res,
		"band":   grading.BandFor(res.Percentage),
	})
}

// Abandon godoc
// DELETE /api/v1/student/exams/:exam_id/attempt
func (h *AttemptHandler) Abandon(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	if err := h.attempts.Abandon(examID, studentID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "abandoned"})
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	examID, studentID, ok := h.identify(c)
	if !ok {
		return
	}

	res, err := h.attempts.Result(c.Request.Context(), examID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"result": res,
		"band":   grading.BandFor(res.Percentage),
	})
}

// identify resolves the exam id from the path and the student id from the
// JWT claims, failing the request itself when either is missing.
func (h *AttemptHandler) identify(c *gin.Context) (uuid.UUID, int, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, 0, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, 0, false
	}
	return examID, claims.UserID, true
}

// fail maps domain errors onto HTTP statuses and stable error codes.
func (h *AttemptHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, model.ErrMalformedExam):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrMalformedExam)
	case errors.Is(err, service.ErrNoActiveAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
	case errors.Is(err, service.ErrAttemptCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptSubmitted)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
	case errors.Is(err, session.ErrInvalidOptionIndex):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidOptionIndex)
	case errors.Is(err, session.ErrNotAcceptingAnswers):
		response.Fail(c, http.StatusConflict, response.ErrNotAcceptingAnswers)
	case errors.Is(err, session.ErrSubmitPending):
		response.Fail(c, http.StatusConflict, response.ErrSubmitPending)
	case errors.Is(err, session.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
	default:
		h.log.Error().Err(err).Msg("Unhandled attempt error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
