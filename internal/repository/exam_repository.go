package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/attemptd/internal/model"
)

// ExamRepository loads grading-capable exam definitions from PostgreSQL.
// Exam authoring lives elsewhere; this side only reads.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetDefinition retrieves an exam with its questions in paper order,
// including correct answers. Never expose the return value to a client.
func (r *ExamRepository) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	exam := &model.ExamDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_seconds
		 FROM exams
		 WHERE id = $1`, examID,
	).Scan(&exam.ID, &exam.Title, &exam.DurationSeconds)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, marks, correct_option
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.Text, &rawOptions, &q.Marks, &q.CorrectOption); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
		}
		exam.Questions = append(exam.Questions, q)
	}
	return exam, rows.Err()
}
