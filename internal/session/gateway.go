package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/model"
)

// ResultGateway is the boundary to the persistence collaborator that grades
// and records a finished attempt.
//
// Submit must be idempotent for the same (exam, student) pair: calling it
// twice must never produce two results or double-count a score. It either
// returns the canonical result or ErrAlreadySubmitted, a TransportError, or
// a data-integrity error. FetchLatest returns the single canonical result
// or ErrResultNotFound.
type ResultGateway interface {
	Submit(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]int, submittedAt time.Time) (*model.GradedResult, error)
	FetchLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error)
}
