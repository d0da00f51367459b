// Package session implements one student's timed attempt at one exam: the
// countdown timer, the answer ledger, and the state machine that guarantees
// at most one submission per attempt no matter how the user's submit action
// and the timer's expiry interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/clock"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/rs/zerolog"
)

// Trigger identifies what drove a submission. It matters for UI messaging
// only — both paths produce the same terminal state and the same grading.
type Trigger string

const (
	TriggerManual  Trigger = "MANUAL"
	TriggerTimeout Trigger = "TIMEOUT"
)

// Session is one student's single attempt at one exam. It is ephemeral:
// destroyed on submission or abandonment, never persisted itself. Only the
// GradedResult it produces outlives it.
//
// Status is monotonic: IN_PROGRESS → SUBMITTING → SUBMITTED, with the one
// exception that a provably write-free transport failure reopens the
// attempt to IN_PROGRESS.
type Session struct {
	examID    uuid.UUID
	studentID int
	exam      *model.ExamDefinition
	gateway   ResultGateway
	clk       clock.Clock
	log       zerolog.Logger

	startedAt time.Time
	deadline  time.Time

	ticks chan int64
	done  chan struct{} // closed exactly once, when a graded result exists

	mu       sync.Mutex
	status   model.AttemptStatus
	closed   bool // abandoned; terminal, gates every operation
	ledger   *AnswerLedger
	timer    *CountdownTimer
	result   *model.GradedResult
	lastErr  error
	inflight chan struct{} // non-nil while a gateway Submit is outstanding
	trigger  Trigger
}

// Start validates the exam, stamps startedAt and the immutable deadline,
// and arms the countdown timer. Timer expiry drives RequestSubmit with
// TriggerTimeout on the session's own goroutine.
func Start(exam *model.ExamDefinition, studentID int, gateway ResultGateway, clk clock.Clock, log zerolog.Logger) (*Session, error) {
	if err := exam.Validate(); err != nil {
		return nil, err
	}

	now := clk.Now()
	s := &Session{
		examID:    exam.ID,
		studentID: studentID,
		exam:      exam,
		gateway:   gateway,
		clk:       clk,
		startedAt: now,
		deadline:  now.Add(time.Duration(exam.DurationSeconds) * time.Second),
		ticks:     make(chan int64, 1),
		done:      make(chan struct{}),
		status:    model.AttemptStatusInProgress,
		ledger:    NewAnswerLedger(exam),
	}
	s.log = log.With().
		Str("component", "session").
		Str("exam_id", exam.ID.String()).
		Int("student_id", studentID).
		Logger()

	s.armTimer()
	s.log.Info().Time("deadline", s.deadline).Msg("Attempt started")
	return s, nil
}

// armTimer installs and starts a fresh countdown timer for the (fixed)
// deadline. Called at start and when a write-free failure reopens the
// attempt; if the deadline has meanwhile passed, expiry fires immediately.
func (s *Session) armTimer() {
	t := NewCountdownTimer(s.clk, s.deadline, s.pushTick, s.onExpire)
	s.timer = t
	t.Start()
}

func (s *Session) pushTick(remaining int64) {
	select {
	case s.ticks <- remaining:
	default: // consumer is behind; it can always read Remaining directly
	}
}

func (s *Session) onExpire() {
	// The timer goroutine ends here; the gateway call may block, which is
	// fine — there is nothing left for this goroutine to do afterwards.
	if _, err := s.RequestSubmit(context.Background(), TriggerTimeout); err != nil {
		s.log.Error().Err(err).Msg("Timeout submission failed")
	}
}

// SetAnswer records a selection in the ledger. Rejected once the attempt
// has left IN_PROGRESS.
func (s *Session) SetAnswer(questionID uuid.UUID, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status != model.AttemptStatusInProgress {
		return ErrNotAcceptingAnswers
	}
	return s.ledger.Set(questionID, optionIndex)
}

// Answer returns the stored selection for a question, ok=false if unanswered.
func (s *Session) Answer(questionID uuid.UUID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Get(questionID)
}

// RequestSubmit is the single entry point for ending the attempt, shared by
// the user's submit action and the timer's expiry. The status check and the
// transition to SUBMITTING happen under one lock acquisition — a
// compare-and-swap — so however the two triggers interleave, the gateway's
// Submit runs at most once. A trigger that loses the race waits for the
// winner's outcome and returns the same result.
//
// A manual submit arriving after the nominal deadline is valid: grading
// uses the ledger snapshot at submission time, not the deadline time.
func (s *Session) RequestSubmit(ctx context.Context, trigger Trigger) (*model.GradedResult, error) {
	s.mu.Lock()
	// A write that landed before abandonment completed still wins: the
	// store holds its result, so surface it instead of hiding it.
	if s.closed && s.status != model.AttemptStatusSubmitted {
		s.mu.Unlock()
		return nil, ErrAttemptClosed
	}
	switch s.status {
	case model.AttemptStatusSubmitted:
		res := s.result
		s.mu.Unlock()
		return res, nil

	case model.AttemptStatusSubmitting:
		wait := s.inflight
		s.mu.Unlock()
		if wait != nil {
			<-wait
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.result != nil {
			return s.result, nil
		}
		if s.closed {
			return nil, ErrAttemptClosed
		}
		if s.lastErr != nil {
			return nil, s.lastErr
		}
		return nil, ErrSubmitPending

	case model.AttemptStatusInProgress:
		s.status = model.AttemptStatusSubmitting
		s.trigger = trigger
		s.lastErr = nil
		settle := make(chan struct{})
		s.inflight = settle
		timer := s.timer
		answers := s.ledger.Snapshot()
		s.mu.Unlock()

		timer.Stop()
		res, err := s.gateway.Submit(ctx, s.examID, s.studentID, answers, s.clk.Now())
		return s.settle(ctx, res, err)

	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("unexpected attempt status %q", s.status)
	}
}

// settle records the outcome of a gateway Submit and releases any waiters.
func (s *Session) settle(ctx context.Context, res *model.GradedResult, err error) (*model.GradedResult, error) {
	if err != nil && errors.Is(err, ErrAlreadySubmitted) {
		// Expected outcome of the at-most-once race, not a failure: adopt
		// the result the store already holds.
		existing, ferr := s.gateway.FetchLatest(ctx, s.examID, s.studentID)
		if ferr == nil {
			res, err = existing, nil
		} else {
			err = ferr
		}
	}

	s.mu.Lock()
	switch {
	case err == nil:
		s.status = model.AttemptStatusSubmitted
		s.result = res
		s.lastErr = nil
		close(s.done)
		s.log.Info().
			Str("trigger", string(s.trigger)).
			Int("obtained", res.ObtainedScore).
			Int("total", res.TotalScore).
			Msg("Attempt submitted and graded")

	case isRetryable(err):
		// Provably nothing was written upstream: reopen the attempt and
		// re-arm the timer (which expires immediately if the deadline is
		// already behind us). An attempt abandoned mid-flight stays
		// closed instead — no write happened, which is exactly what
		// abandonment promises, and a fresh timer must not resurrect it.
		s.status = model.AttemptStatusInProgress
		s.lastErr = err
		if s.closed {
			s.log.Info().Err(err).Msg("Submission failed after abandonment, nothing recorded")
		} else {
			s.armTimer()
			s.log.Warn().Err(err).Msg("Submission failed before any write, attempt reopened")
		}

	default:
		// Ambiguous: the store may or may not have recorded the write.
		// Stay in SUBMITTING until Reconcile checks FetchLatest — reverting
		// here could double-count the score.
		s.lastErr = err
		s.log.Error().Err(err).Msg("Submission outcome unknown, reconciliation required")
	}
	settle := s.inflight
	s.inflight = nil
	s.mu.Unlock()

	close(settle)

	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reconcile resolves an attempt stuck in SUBMITTING after an ambiguous
// transport failure. If the store already holds a result, the attempt
// completes with it; if the store provably has nothing, the attempt
// reopens so a fresh RequestSubmit is allowed.
func (s *Session) Reconcile(ctx context.Context) (*model.GradedResult, error) {
	s.mu.Lock()
	if s.status == model.AttemptStatusSubmitted {
		res := s.result
		s.mu.Unlock()
		return res, nil
	}
	if s.closed {
		s.mu.Unlock()
		return nil, ErrAttemptClosed
	}
	if s.status != model.AttemptStatusSubmitting {
		s.mu.Unlock()
		return nil, fmt.Errorf("nothing to reconcile in status %q", s.status)
	}
	wait := s.inflight
	s.mu.Unlock()
	if wait != nil {
		// A submission is still in flight; let it settle first.
		<-wait
	}

	res, err := s.gateway.FetchLatest(ctx, s.examID, s.studentID)
	if err == nil {
		s.mu.Lock()
		if s.status != model.AttemptStatusSubmitted {
			s.status = model.AttemptStatusSubmitted
			s.result = res
			s.lastErr = nil
			close(s.done)
		} else {
			res = s.result
		}
		s.mu.Unlock()
		s.log.Info().Msg("Reconciliation found the recorded result")
		return res, nil
	}

	if errors.Is(err, ErrResultNotFound) {
		s.mu.Lock()
		if s.status == model.AttemptStatusSubmitting && s.inflight == nil && !s.closed {
			s.status = model.AttemptStatusInProgress
			s.lastErr = nil
			s.armTimer()
			s.log.Info().Msg("Reconciliation confirmed no write, attempt reopened")
		}
		s.mu.Unlock()
		return nil, ErrResultNotFound
	}

	return nil, err
}

// Close abandons the attempt: the timer is released, every further
// operation is rejected, and no result is ever written — not even by a
// submission that was in flight and gets retried or reconciled later.
// Idempotent; a no-op once the attempt has been submitted.
func (s *Session) Close() {
	s.mu.Lock()
	if s.status == model.AttemptStatusSubmitted {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timer := s.timer
	s.mu.Unlock()
	timer.Stop()
}

// Ticks delivers the countdown's once-per-second remaining-time events.
// Ticks are best-effort and may be coalesced; Remaining is authoritative.
func (s *Session) Ticks() <-chan int64 { return s.ticks }

// Done is closed once a graded result is available.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the graded result, or nil before submission completes.
func (s *Session) Result() *model.GradedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Status returns the current attempt status.
func (s *Session) Status() model.AttemptStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubmitTrigger reports what drove the (attempted) submission.
func (s *Session) SubmitTrigger() Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigger
}

// Deadline returns the immutable absolute deadline.
func (s *Session) Deadline() time.Time { return s.deadline }

// Remaining returns time left before the deadline, floored at zero.
func (s *Session) Remaining() time.Duration {
	rem := s.deadline.Sub(s.clk.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

// State snapshots the attempt for the display layer.
func (s *Session) State() *model.AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.startedAt
	deadline := s.deadline
	state := &model.AttemptState{
		ExamID:          s.examID,
		StudentID:       s.studentID,
		Status:          s.status,
		StartedAt:       &started,
		Deadline:        &deadline,
		AnsweredCount:   s.ledger.AnsweredCount(),
		UnansweredCount: s.ledger.UnansweredCount(),
		Result:          s.result,
	}
	if s.status == model.AttemptStatusInProgress {
		rem := s.deadline.Sub(s.clk.Now())
		if rem < 0 {
			rem = 0
		}
		secs := int64((rem + time.Second - 1) / time.Second)
		state.RemainingSeconds = &secs
	}
	return state
}
