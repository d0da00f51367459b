package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/model"
)

func ledgerExam() (*model.ExamDefinition, uuid.UUID, uuid.UUID) {
	q1 := uuid.New()
	q2 := uuid.New()
	exam := &model.ExamDefinition{
		ID:              uuid.New(),
		DurationSeconds: 60,
		Questions: []model.Question{
			{ID: q1, Options: []string{"a", "b", "c"}, Marks: 5, CorrectOption: 0},
			{ID: q2, Options: []string{"x", "y"}, Marks: 5, CorrectOption: 1},
		},
	}
	return exam, q1, q2
}

func TestLedgerSetAndGet(t *testing.T) {
	exam, q1, _ := ledgerExam()
	l := NewAnswerLedger(exam)

	if _, ok := l.Get(q1); ok {
		t.Error("fresh ledger should report unanswered")
	}

	if err := l.Set(q1, 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := l.Get(q1); !ok || got != 2 {
		t.Errorf("Get = (%d, %v), want (2, true)", got, ok)
	}

	// Last write wins, no history.
	if err := l.Set(q1, 0); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got, _ := l.Get(q1); got != 0 {
		t.Errorf("overwrite: Get = %d, want 0", got)
	}
}

func TestLedgerInvalidOptionIndex(t *testing.T) {
	exam, q1, _ := ledgerExam()
	l := NewAnswerLedger(exam)

	for _, idx := range []int{-1, 3, 7} {
		if err := l.Set(q1, idx); !errors.Is(err, ErrInvalidOptionIndex) {
			t.Errorf("Set(%d) err = %v, want ErrInvalidOptionIndex", idx, err)
		}
	}
	if _, ok := l.Get(q1); ok {
		t.Error("rejected write must leave the ledger unchanged")
	}
}

func TestLedgerUnknownQuestion(t *testing.T) {
	exam, _, _ := ledgerExam()
	l := NewAnswerLedger(exam)

	if err := l.Set(uuid.New(), 0); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("err = %v, want ErrUnknownQuestion", err)
	}
	if l.AnsweredCount() != 0 {
		t.Error("rejected write must leave the ledger unchanged")
	}
}

func TestLedgerCountsAndSnapshot(t *testing.T) {
	exam, q1, q2 := ledgerExam()
	l := NewAnswerLedger(exam)

	if l.UnansweredCount() != 2 {
		t.Errorf("UnansweredCount = %d, want 2", l.UnansweredCount())
	}

	if err := l.Set(q1, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap := l.Snapshot()

	// Snapshot is a copy: later writes must not leak into it.
	if err := l.Set(q2, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(snap) != 1 {
		t.Errorf("snapshot len = %d, want 1", len(snap))
	}
	if l.AnsweredCount() != 2 || l.UnansweredCount() != 0 {
		t.Errorf("counts = (%d answered, %d unanswered), want (2, 0)", l.AnsweredCount(), l.UnansweredCount())
	}
}
