package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/clock"
	"github.com/quizforge/attemptd/internal/grading"
	"github.com/quizforge/attemptd/internal/model"
	"github.com/rs/zerolog"
)

// fakeGateway implements ResultGateway in memory. submitErrs is consumed
// one entry per Submit call; a nil entry (or an exhausted queue) grades the
// snapshot and stores the result.
type fakeGateway struct {
	mu         sync.Mutex
	exam       *model.ExamDefinition
	submits    int
	submitErrs []error
	block      chan struct{} // if non-nil, Submit waits on it
	stored     *model.GradedResult
}

func (g *fakeGateway) Submit(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]int, submittedAt time.Time) (*model.GradedResult, error) {
	g.mu.Lock()
	g.submits++
	var err error
	if len(g.submitErrs) > 0 {
		err = g.submitErrs[0]
		g.submitErrs = g.submitErrs[1:]
	}
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}

	res, gerr := grading.Grade(g.exam, studentID, answers, submittedAt)
	if gerr != nil {
		return nil, gerr
	}
	g.mu.Lock()
	if g.stored == nil {
		g.stored = res
	} else {
		res = g.stored
	}
	g.mu.Unlock()
	return res, nil
}

func (g *fakeGateway) FetchLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.GradedResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stored == nil {
		return nil, ErrResultNotFound
	}
	return g.stored, nil
}

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits
}

func sessionFixture(t *testing.T, durationSeconds int) (*Session, *fakeGateway, *clock.Manual, uuid.UUID, uuid.UUID) {
	t.Helper()
	q1 := uuid.New()
	q2 := uuid.New()
	exam := &model.ExamDefinition{
		ID:              uuid.New(),
		DurationSeconds: durationSeconds,
		Questions: []model.Question{
			{ID: q1, Options: []string{"3", "4", "5"}, Marks: 5, CorrectOption: 1},
			{ID: q2, Options: []string{"6", "8", "9"}, Marks: 5, CorrectOption: 2},
		},
	}
	gw := &fakeGateway{exam: exam}
	clk := clock.NewManual(time.Unix(1700000000, 0))

	sess, err := Start(exam, 42, gw, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(sess.Close)
	return sess, gw, clk, q1, q2
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to complete")
	}
}

func TestManualSubmit(t *testing.T) {
	sess, gw, _, q1, _ := sessionFixture(t, 600)

	if err := sess.SetAnswer(q1, 1); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	res, err := sess.RequestSubmit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if res.ObtainedScore != 5 || res.TotalScore != 10 {
		t.Errorf("score = %d/%d, want 5/10", res.ObtainedScore, res.TotalScore)
	}
	if sess.Status() != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", sess.Status())
	}
	if gw.submitCount() != 1 {
		t.Errorf("gateway submits = %d, want 1", gw.submitCount())
	}

	// Submitting again is a no-op returning the same result.
	again, err := sess.RequestSubmit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("second RequestSubmit: %v", err)
	}
	if again != res {
		t.Error("second submit should return the already-produced result")
	}
	if gw.submitCount() != 1 {
		t.Errorf("gateway submits after repeat = %d, want 1", gw.submitCount())
	}
}

func TestSubmitRaceProducesOneResult(t *testing.T) {
	// The user clicks submit at the same logical instant the timer
	// expires: both triggers race into RequestSubmit while the gateway
	// call is deliberately held open.
	sess, gw, _, _, _ := sessionFixture(t, 600)

	release := make(chan struct{})
	gw.mu.Lock()
	gw.block = release
	gw.mu.Unlock()

	type outcome struct {
		res *model.GradedResult
		err error
	}
	results := make(chan outcome, 2)
	for _, trigger := range []Trigger{TriggerManual, TriggerTimeout} {
		go func(tr Trigger) {
			res, err := sess.RequestSubmit(context.Background(), tr)
			results <- outcome{res, err}
		}(trigger)
	}

	// Give both goroutines time to reach the compare-and-swap.
	time.Sleep(50 * time.Millisecond)
	close(release)

	first := <-results
	second := <-results
	if first.err != nil || second.err != nil {
		t.Fatalf("errors: %v, %v", first.err, second.err)
	}
	if first.res != second.res {
		t.Error("both triggers must observe the same GradedResult")
	}
	if gw.submitCount() != 1 {
		t.Errorf("gateway submits = %d, want exactly 1", gw.submitCount())
	}
}

func TestTimerExpirySubmitsUnanswered(t *testing.T) {
	sess, gw, clk, _, _ := sessionFixture(t, 2)

	clk.Advance(2 * time.Second)
	waitDone(t, sess)

	res := sess.Result()
	if res == nil {
		t.Fatal("no result after expiry")
	}
	if res.ObtainedScore != 0 || res.Percentage != 0.0 {
		t.Errorf("score = %d, percentage = %v, want 0 and 0.0", res.ObtainedScore, res.Percentage)
	}
	if len(res.PerQuestion) != 2 {
		t.Errorf("per-question = %d entries, want 2 (unanswered submitted, not dropped)", len(res.PerQuestion))
	}
	if gw.submitCount() != 1 {
		t.Errorf("gateway submits = %d, want 1", gw.submitCount())
	}
	if sess.SubmitTrigger() != TriggerTimeout {
		t.Errorf("trigger = %s, want TIMEOUT", sess.SubmitTrigger())
	}
}

func TestAnswersRejectedAfterSubmission(t *testing.T) {
	sess, _, _, q1, _ := sessionFixture(t, 600)

	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if err := sess.SetAnswer(q1, 1); !errors.Is(err, ErrNotAcceptingAnswers) {
		t.Errorf("err = %v, want ErrNotAcceptingAnswers", err)
	}
}

func TestRetryableFailureReopensAttempt(t *testing.T) {
	sess, gw, _, q1, _ := sessionFixture(t, 600)
	gw.mu.Lock()
	gw.submitErrs = []error{&TransportError{Err: errors.New("connection refused"), Retryable: true}}
	gw.mu.Unlock()

	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); err == nil {
		t.Fatal("expected transport error")
	}
	if sess.Status() != model.AttemptStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS (provably no write)", sess.Status())
	}

	// The reopened attempt still accepts answers and a fresh submit.
	if err := sess.SetAnswer(q1, 1); err != nil {
		t.Fatalf("SetAnswer after reopen: %v", err)
	}
	res, err := sess.RequestSubmit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("retry RequestSubmit: %v", err)
	}
	if res.ObtainedScore != 5 {
		t.Errorf("obtained = %d, want 5", res.ObtainedScore)
	}
	if gw.submitCount() != 2 {
		t.Errorf("gateway submits = %d, want 2", gw.submitCount())
	}
}

func TestAmbiguousFailureRequiresReconciliation(t *testing.T) {
	sess, gw, _, _, _ := sessionFixture(t, 600)
	gw.mu.Lock()
	gw.submitErrs = []error{&TransportError{Err: errors.New("i/o timeout"), Retryable: false}}
	gw.mu.Unlock()

	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); err == nil {
		t.Fatal("expected transport error")
	}
	if sess.Status() != model.AttemptStatusSubmitting {
		t.Fatalf("status = %s, want SUBMITTING (write may have landed)", sess.Status())
	}

	// A repeated submit must not issue a second gateway call.
	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); err == nil {
		t.Error("repeat submit while unreconciled should fail")
	}
	if gw.submitCount() != 1 {
		t.Errorf("gateway submits = %d, want 1", gw.submitCount())
	}

	// Reconciliation discovers the write actually succeeded server-side.
	stored, err := grading.Grade(gw.exam, 42, nil, time.Unix(1700000100, 0))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	gw.mu.Lock()
	gw.stored = stored
	gw.mu.Unlock()

	res, err := sess.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res != stored {
		t.Error("reconcile must surface the stored result")
	}
	if sess.Status() != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", sess.Status())
	}
	waitDone(t, sess)
}

func TestReconcileConfirmsNoWriteAndReopens(t *testing.T) {
	sess, gw, _, _, _ := sessionFixture(t, 600)
	gw.mu.Lock()
	gw.submitErrs = []error{&TransportError{Err: errors.New("i/o timeout"), Retryable: false}}
	gw.mu.Unlock()

	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); err == nil {
		t.Fatal("expected transport error")
	}

	if _, err := sess.Reconcile(context.Background()); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("Reconcile err = %v, want ErrResultNotFound", err)
	}
	if sess.Status() != model.AttemptStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS after confirmed no-write", sess.Status())
	}

	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); err != nil {
		t.Fatalf("fresh submit after reconcile: %v", err)
	}
	if gw.submitCount() != 2 {
		t.Errorf("gateway submits = %d, want 2", gw.submitCount())
	}
}

func TestAlreadySubmittedRejectionTreatedAsSuccess(t *testing.T) {
	sess, gw, _, _, _ := sessionFixture(t, 600)

	stored, err := grading.Grade(gw.exam, 42, nil, time.Unix(1700000100, 0))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	gw.mu.Lock()
	gw.stored = stored
	gw.submitErrs = []error{ErrAlreadySubmitted}
	gw.mu.Unlock()

	res, err := sess.RequestSubmit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if res != stored {
		t.Error("engine must adopt the existing result on already-submitted rejection")
	}
	if sess.Status() != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", sess.Status())
	}
}

func TestAbandonMidSubmitWritesNothing(t *testing.T) {
	// The submit call is held open at the gateway while the student
	// abandons the attempt; the call then fails without having written.
	// The abandoned attempt must stay dead: no re-armed timer, no
	// timeout submission, no result.
	sess, gw, clk, _, _ := sessionFixture(t, 600)

	release := make(chan struct{})
	gw.mu.Lock()
	gw.block = release
	gw.submitErrs = []error{&TransportError{Err: errors.New("connection refused"), Retryable: true}}
	gw.mu.Unlock()

	errs := make(chan error, 1)
	go func() {
		_, err := sess.RequestSubmit(context.Background(), TriggerManual)
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)

	sess.Close()
	close(release)

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected transport error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for submit outcome")
	}

	clk.Advance(700 * time.Second)
	time.Sleep(50 * time.Millisecond)

	if gw.submitCount() != 1 {
		t.Errorf("gateway submits = %d, want 1 (abandonment must not trigger a submission)", gw.submitCount())
	}
	gw.mu.Lock()
	stored := gw.stored
	gw.mu.Unlock()
	if stored != nil {
		t.Error("abandoned attempt must never produce a result")
	}

	if _, err := sess.RequestSubmit(context.Background(), TriggerManual); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("submit after abandon err = %v, want ErrAttemptClosed", err)
	}
	if err := sess.SetAnswer(uuid.New(), 0); !errors.Is(err, ErrNotAcceptingAnswers) {
		t.Errorf("answer after abandon err = %v, want ErrNotAcceptingAnswers", err)
	}
	if _, err := sess.Reconcile(context.Background()); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("reconcile after abandon err = %v, want ErrAttemptClosed", err)
	}
}

func TestCloseAfterSubmissionKeepsResult(t *testing.T) {
	sess, _, _, _, _ := sessionFixture(t, 600)

	res, err := sess.RequestSubmit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}

	sess.Close()
	if sess.Status() != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED (close is a no-op after submission)", sess.Status())
	}
	again, err := sess.RequestSubmit(context.Background(), TriggerManual)
	if err != nil || again != res {
		t.Errorf("result after close = (%v, %v), want the original result", again, err)
	}
}

func TestStartRejectsMalformedExam(t *testing.T) {
	exam := &model.ExamDefinition{
		ID:              uuid.New(),
		DurationSeconds: 60,
		Questions:       []model.Question{{ID: uuid.New(), Marks: 5}},
	}
	if _, err := Start(exam, 1, &fakeGateway{exam: exam}, clock.NewManual(time.Now()), zerolog.Nop()); !errors.Is(err, model.ErrMalformedExam) {
		t.Errorf("err = %v, want ErrMalformedExam", err)
	}
}

func TestStateSnapshot(t *testing.T) {
	sess, _, clk, q1, _ := sessionFixture(t, 10)

	if err := sess.SetAnswer(q1, 0); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	clk.Advance(0) // no movement, just read state at t0

	state := sess.State()
	if state.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", state.Status)
	}
	if state.AnsweredCount != 1 || state.UnansweredCount != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", state.AnsweredCount, state.UnansweredCount)
	}
	if state.RemainingSeconds == nil || *state.RemainingSeconds != 10 {
		t.Errorf("remaining = %v, want 10", state.RemainingSeconds)
	}
	if state.Deadline == nil || !state.Deadline.Equal(sess.Deadline()) {
		t.Error("state deadline mismatch")
	}
}
