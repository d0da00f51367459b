package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/attemptd/internal/model"
)

// ResultRepository reads canonical graded results from PostgreSQL.
// Writes go through the persist queue and ResultWorker, so reads here are
// the durable fallback behind the Redis cache.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// GetLatest retrieves the single graded result for an (exam, student) pair.
// Returns pgx.ErrNoRows (wrapped) when none exists.
func (r *ResultRepository) GetLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	res := &model.GradedResult{}
	var rawPerQuestion []byte
	err := r.pool.QueryRow(ctx,
		`SELECT exam_id, student_id, submitted_at, total_score, obtained_score, percentage, per_question
		 FROM graded_results
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&res.ExamID, &res.StudentID, &res.SubmittedAt, &res.TotalScore, &res.ObtainedScore, &res.Percentage, &rawPerQuestion)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rawPerQuestion, &res.PerQuestion); err != nil {
		return nil, fmt.Errorf("decode per-question breakdown: %w", err)
	}
	return res, nil
}
