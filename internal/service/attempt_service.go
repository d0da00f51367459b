package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/clock"
	"github.com/quizforge/attemptd/internal/grading"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/quizforge/attemptd/internal/session"
	"github.com/rs/zerolog"
)

type attemptKey struct {
	examID    uuid.UUID
	studentID int
}

// AttemptService owns all live attempt sessions in this process and is the
// engine's public surface: handlers and the websocket layer only ever talk
// to it. Submission flows from a session through resultGateway into grading
// and the result store.
type AttemptService struct {
	exams   ExamStore
	results ResultStore
	gateway *resultGateway
	clk     clock.Clock
	log     zerolog.Logger

	mu   sync.Mutex
	live map[attemptKey]*session.Session
}

func NewAttemptService(exams ExamStore, results ResultStore, clk clock.Clock, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		exams:   exams,
		results: results,
		gateway: &resultGateway{exams: exams, results: results},
		clk:     clk,
		log:     log.With().Str("component", "attempt_service").Logger(),
		live:    make(map[attemptKey]*session.Session),
	}
}

// resultGateway implements session.ResultGateway on top of the stores.
// The existence check before grading makes submission idempotent across
// processes: a duplicate submit is rejected with ErrAlreadySubmitted and
// the session adopts the recorded result instead.
type resultGateway struct {
	exams   ExamStore
	results ResultStore
}

func (g *resultGateway) Submit(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]int, submittedAt time.Time) (*model.GradedResult, error) {
	if _, err := g.results.GetLatest(ctx, examID, studentID); err == nil {
		return nil, session.ErrAlreadySubmitted
	} else if !errors.Is(err, session.ErrResultNotFound) {
		return nil, err
	}

	exam, err := g.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}
	res, err := grading.Grade(exam, studentID, answers, submittedAt)
	if err != nil {
		return nil, err
	}
	if err := g.results.Save(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *resultGateway) FetchLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	return g.results.GetLatest(ctx, examID, studentID)
}

// StartAttempt begins a timed attempt, or returns the existing live session
// when the student reconnects mid-attempt. A student who already has a
// graded result cannot start again.
func (s *AttemptService) StartAttempt(ctx context.Context, examID uuid.UUID, studentID int) (*session.Session, error) {
	key := attemptKey{examID: examID, studentID: studentID}

	s.mu.Lock()
	if sess, ok := s.live[key]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	if _, err := s.results.GetLatest(ctx, examID, studentID); err == nil {
		return nil, ErrAttemptCompleted
	} else if !errors.Is(err, session.ErrResultNotFound) {
		return nil, err
	}

	exam, err := s.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the lock: a concurrent StartAttempt may have won.
	if sess, ok := s.live[key]; ok {
		return sess, nil
	}

	sess, err := session.Start(exam, studentID, s.gateway, s.clk, s.log)
	if err != nil {
		return nil, err
	}
	s.live[key] = sess
	go s.reap(key, sess)
	return sess, nil
}

// reap removes a session from the live registry once it has a graded
// result. The linger gives late pollers a window to read the final state
// from the session before falling back to the result store.
func (s *AttemptService) reap(key attemptKey, sess *session.Session) {
	<-sess.Done()
	time.Sleep(30 * time.Second)
	s.mu.Lock()
	if s.live[key] == sess {
		delete(s.live, key)
	}
	s.mu.Unlock()
}

func (s *AttemptService) liveSession(examID uuid.UUID, studentID int) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.live[attemptKey{examID: examID, studentID: studentID}]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	return sess, nil
}

// GetSession exposes the live session for stream consumers (websocket).
func (s *AttemptService) GetSession(examID uuid.UUID, studentID int) (*session.Session, error) {
	return s.liveSession(examID, studentID)
}

// Paper returns the student-facing rendering of the exam for a live
// attempt. Correct answers never appear in it.
func (s *AttemptService) Paper(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptPaper, error) {
	if _, err := s.liveSession(examID, studentID); err != nil {
		return nil, err
	}
	exam, err := s.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}
	return exam.Paper(), nil
}

// SetAnswer records a selection on the live attempt.
func (s *AttemptService) SetAnswer(examID uuid.UUID, studentID int, questionID uuid.UUID, optionIndex int) error {
	sess, err := s.liveSession(examID, studentID)
	if err != nil {
		return err
	}
	return sess.SetAnswer(questionID, optionIndex)
}

// Submit ends the live attempt on the student's request.
func (s *AttemptService) Submit(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	sess, err := s.liveSession(examID, studentID)
	if err != nil {
		return nil, err
	}
	return sess.RequestSubmit(ctx, session.TriggerManual)
}

// Reconcile resolves an attempt stuck after an ambiguous submit failure.
func (s *AttemptService) Reconcile(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	sess, err := s.liveSession(examID, studentID)
	if err != nil {
		return nil, err
	}
	return sess.Reconcile(ctx)
}

// Abandon discards a live attempt without grading it.
func (s *AttemptService) Abandon(examID uuid.UUID, studentID int) error {
	key := attemptKey{examID: examID, studentID: studentID}
	s.mu.Lock()
	sess, ok := s.live[key]
	if ok {
		delete(s.live, key)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNoActiveAttempt
	}
	sess.Close()
	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Attempt abandoned")
	return nil
}

// State reports where the student's attempt stands. A live session answers
// directly; otherwise the result store decides between SUBMITTED and
// NOT_STARTED.
func (s *AttemptService) State(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptState, error) {
	if sess, err := s.liveSession(examID, studentID); err == nil {
		return sess.State(), nil
	}

	res, err := s.results.GetLatest(ctx, examID, studentID)
	if err == nil {
		return &model.AttemptState{
			ExamID:    examID,
			StudentID: studentID,
			Status:    model.AttemptStatusSubmitted,
			Result:    res,
		}, nil
	}
	if errors.Is(err, session.ErrResultNotFound) {
		return &model.AttemptState{
			ExamID:    examID,
			StudentID: studentID,
			Status:    model.AttemptStatusNotStarted,
		}, nil
	}
	return nil, err
}

// Result returns the graded result for a completed attempt.
func (s *AttemptService) Result(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	return s.results.GetLatest(ctx, examID, studentID)
}
