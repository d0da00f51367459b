package model

import (
	"time"

	"github.com/google/uuid"
)

// GradedResult is the immutable scored outcome of a completed attempt.
// Exactly one exists per (exam, student) pair under the no-retake policy.
type GradedResult struct {
	ExamID        uuid.UUID        `json:"exam_id"`
	StudentID     int              `json:"student_id"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	TotalScore    int              `json:"total_score"`
	ObtainedScore int              `json:"obtained_score"`
	Percentage    float64          `json:"percentage"`
	PerQuestion   []QuestionResult `json:"per_question"`
}

// QuestionResult is the graded outcome of a single question.
// StudentAnswer is nil when the question was left unanswered.
type QuestionResult struct {
	QuestionID    uuid.UUID `json:"question_id"`
	StudentAnswer *int      `json:"student_answer"`
	CorrectAnswer int       `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	Marks         int       `json:"marks"`
	ObtainedMarks int       `json:"obtained_marks"`
}
