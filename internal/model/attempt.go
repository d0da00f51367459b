package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the single source of truth for where an attempt stands.
// The result is carried inside the SUBMITTED state rather than re-derived
// from separate flags.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitting AttemptStatus = "SUBMITTING"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// AttemptState is the attempt as reported to the display layer.
// Deadline and RemainingSeconds are set while IN_PROGRESS; Result is set
// once SUBMITTED.
type AttemptState struct {
	ExamID           uuid.UUID     `json:"exam_id"`
	StudentID        int           `json:"student_id"`
	Status           AttemptStatus `json:"status"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	Deadline         *time.Time    `json:"deadline,omitempty"`
	RemainingSeconds *int64        `json:"remaining_seconds,omitempty"`
	AnsweredCount    int           `json:"answered_count"`
	UnansweredCount  int           `json:"unanswered_count"`
	Result           *GradedResult `json:"result,omitempty"`
}

// SaveAnswerRequest is the payload for recording a selection.
type SaveAnswerRequest struct {
	QuestionID  uuid.UUID `json:"question_id" binding:"required"`
	OptionIndex *int      `json:"option_index" binding:"required,min=0"`
}
