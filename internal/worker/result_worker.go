package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/attemptd/internal/config"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker drains the persist queue into PostgreSQL. The queue entry is
// the durable handoff: once a result is enqueued, the worker owns getting it
// into graded_results, requeueing on failure so nothing is dropped.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.GradedResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			res := &model.GradedResult{}
			if err := json.Unmarshal([]byte(item[1]), res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, res)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.GradedResult) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsertResults(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result insert failed, using fallback")

		for _, res := range batch {
			if err := w.persistSingle(ctx, res); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
	}
}

// ----------------------------------------------------------------
// BULK PostgreSQL INSERT using UNNEST + alias
// ----------------------------------------------------------------

// The ON CONFLICT DO NOTHING keeps the insert idempotent under requeues
// and crash-replays: the first recorded result for an attempt wins.
func (w *ResultWorker) bulkInsertResults(ctx context.Context, batch []*model.GradedResult) error {
	n := len(batch)

	examIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)
	submittedAts := make([]time.Time, 0, n)
	totals := make([]int, 0, n)
	obtaineds := make([]int, 0, n)
	percentages := make([]float64, 0, n)
	perQuestions := make([]string, 0, n)

	for _, res := range batch {
		raw, err := json.Marshal(res.PerQuestion)
		if err != nil {
			return err
		}
		examIDs = append(examIDs, res.ExamID)
		students = append(students, res.StudentID)
		submittedAts = append(submittedAts, res.SubmittedAt)
		totals = append(totals, res.TotalScore)
		obtaineds = append(obtaineds, res.ObtainedScore)
		percentages = append(percentages, res.Percentage)
		perQuestions = append(perQuestions, string(raw))
	}

	query := `
		INSERT INTO graded_results
			(exam_id, student_id, submitted_at, total_score, obtained_score, percentage, per_question)
		SELECT
			u.exam_id,
			u.student_id,
			u.submitted_at,
			u.total_score,
			u.obtained_score,
			u.percentage,
			u.per_question
		FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::timestamptz[],
			$4::int[],
			$5::int[],
			$6::float8[],
			$7::jsonb[]
		) AS u (exam_id, student_id, submitted_at, total_score, obtained_score, percentage, per_question)
		ON CONFLICT (exam_id, student_id) DO NOTHING
	`

	_, err := w.pool.Exec(ctx, query, examIDs, students, submittedAts, totals, obtaineds, percentages, perQuestions)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *ResultWorker) persistSingle(ctx context.Context, res *model.GradedResult) error {
	raw, err := json.Marshal(res.PerQuestion)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO graded_results
			(exam_id, student_id, submitted_at, total_score, obtained_score, percentage, per_question)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		res.ExamID, res.StudentID, res.SubmittedAt, res.TotalScore, res.ObtainedScore, res.Percentage, raw,
	)

	return err
}
