package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizforge/attemptd/internal/config"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/quizforge/attemptd/internal/repository"
	"github.com/quizforge/attemptd/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const resultCacheTTL = 24 * time.Hour

// ResultStore records and retrieves graded results. Save must be durable
// before it returns success; GetLatest must see every successful Save.
type ResultStore interface {
	Save(ctx context.Context, res *model.GradedResult) error
	GetLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error)
}

// CachedResultStore writes results to the Redis persist queue (drained to
// PostgreSQL by ResultWorker) and reads through a Redis cache with a
// PostgreSQL fallback.
type CachedResultStore struct {
	repo  *repository.ResultRepository
	redis *redis.Client
	log   zerolog.Logger
}

func NewCachedResultStore(repo *repository.ResultRepository, rdb *redis.Client, log zerolog.Logger) *CachedResultStore {
	return &CachedResultStore{
		repo:  repo,
		redis: rdb,
		log:   log.With().Str("component", "result_store").Logger(),
	}
}

// Save enqueues the result for durable persistence and fills the read cache.
// The queue push is the write that matters: once it succeeds the result
// exists, even if the cache write after it fails.
func (s *CachedResultStore) Save(ctx context.Context, res *model.GradedResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}

	if err := s.redis.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err(); err != nil {
		return classifyWriteErr(err)
	}

	key := config.CacheKey.ResultKey(res.ExamID.String(), res.StudentID)
	if err := s.redis.Set(ctx, key, payload, resultCacheTTL).Err(); err != nil {
		// The queued write is already durable-bound; a stale cache miss just
		// means the next read falls back to PostgreSQL.
		s.log.Warn().Err(err).Str("key", key).Msg("Result cache write failed")
	}
	return nil
}

// GetLatest reads the cached result, then the persist queue, then
// PostgreSQL, self-healing the cache on the way out. The queue scan is what
// keeps the Save contract honest: a submission is visible from the moment
// its queue push lands, not only once the worker has drained it — so a
// reconciling attempt finds a write that slipped through an ambiguous
// failure instead of wrongly reopening and submitting twice. Returns
// session.ErrResultNotFound when no side has one.
func (s *CachedResultStore) GetLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	key := config.CacheKey.ResultKey(examID.String(), studentID)

	cached, err := s.redis.Get(ctx, key).Result()
	if err == nil {
		res := &model.GradedResult{}
		if jsonErr := json.Unmarshal([]byte(cached), res); jsonErr == nil {
			return res, nil
		}
		s.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", key).Msg("Result cache read failed, falling back to database")
	}

	if res, ok := s.queuedResult(ctx, examID, studentID); ok {
		return res, nil
	}

	res, err := s.repo.GetLatest(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrResultNotFound
		}
		return nil, &session.TransportError{Err: err}
	}

	if payload, err := json.Marshal(res); err == nil {
		if err := s.redis.Set(ctx, key, payload, resultCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Result cache write failed")
		}
	}
	return res, nil
}

// queuedResult scans the persist queue for a result the worker has not
// drained yet. The queue normally empties within seconds, so the linear
// scan stays cheap; a scan failure degrades to the PostgreSQL read.
func (s *CachedResultStore) queuedResult(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, bool) {
	entries, err := s.redis.LRange(ctx, config.WorkerKey.PersistResultsQueue, 0, -1).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("Persist queue scan failed")
		return nil, false
	}
	return matchQueued(entries, examID, studentID)
}

// matchQueued finds the queued graded result for an (exam, student) pair,
// skipping entries that do not decode.
func matchQueued(entries []string, examID uuid.UUID, studentID int) (*model.GradedResult, bool) {
	for _, raw := range entries {
		res := &model.GradedResult{}
		if err := json.Unmarshal([]byte(raw), res); err != nil {
			continue
		}
		if res.ExamID == examID && res.StudentID == studentID {
			return res, true
		}
	}
	return nil, false
}

// classifyWriteErr maps a queue-push failure onto the engine's transport
// taxonomy. A rejected or refused connection provably left no write behind
// and is safe to retry; a timeout or cancellation is ambiguous because the
// push may have been applied before the response was lost.
func classifyWriteErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &session.TransportError{Err: err, Retryable: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &session.TransportError{Err: err, Retryable: false}
	}
	return &session.TransportError{Err: err, Retryable: true}
}
