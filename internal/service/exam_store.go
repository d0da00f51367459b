package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizforge/attemptd/internal/config"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/quizforge/attemptd/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const examDefinitionTTL = 10 * time.Minute

// ExamStore resolves grading-capable exam definitions.
type ExamStore interface {
	GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error)
}

// CachedExamStore serves exam definitions from Redis with a PostgreSQL
// fallback, self-healing the cache on a miss.
type CachedExamStore struct {
	repo  *repository.ExamRepository
	redis *redis.Client
	log   zerolog.Logger
}

func NewCachedExamStore(repo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *CachedExamStore {
	return &CachedExamStore{
		repo:  repo,
		redis: rdb,
		log:   log.With().Str("component", "exam_store").Logger(),
	}
}

func (s *CachedExamStore) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	key := config.CacheKey.ExamDefinitionKey(examID.String())

	cached, err := s.redis.Get(ctx, key).Result()
	if err == nil {
		exam := &model.ExamDefinition{}
		if jsonErr := json.Unmarshal([]byte(cached), exam); jsonErr == nil {
			return exam, nil
		}
		// Corrupt cache entry; fall through to the database.
		s.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", key).Msg("Exam cache read failed, falling back to database")
	}

	exam, err := s.repo.GetDefinition(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	if payload, err := json.Marshal(exam); err == nil {
		if err := s.redis.Set(ctx, key, payload, examDefinitionTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Exam cache write failed")
		}
	}
	return exam, nil
}
