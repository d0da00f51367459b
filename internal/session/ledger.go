package session

import (
	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/model"
)

// AnswerLedger records a student's in-progress selections for one attempt.
// A question with no entry is unanswered — there is no magic sentinel
// value inside the map. The ledger is not safe for concurrent use on its
// own; the owning Session serializes access.
type AnswerLedger struct {
	optionCounts map[uuid.UUID]int
	answers      map[uuid.UUID]int
}

// NewAnswerLedger creates an empty ledger scoped to the exam's questions.
func NewAnswerLedger(exam *model.ExamDefinition) *AnswerLedger {
	counts := make(map[uuid.UUID]int, len(exam.Questions))
	for i := range exam.Questions {
		counts[exam.Questions[i].ID] = len(exam.Questions[i].Options)
	}
	return &AnswerLedger{
		optionCounts: counts,
		answers:      make(map[uuid.UUID]int),
	}
}

// Set records a selection, overwriting any prior value (last-write-wins,
// no history). Fails with ErrUnknownQuestion or ErrInvalidOptionIndex
// without touching the ledger.
func (l *AnswerLedger) Set(questionID uuid.UUID, optionIndex int) error {
	count, ok := l.optionCounts[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= count {
		return ErrInvalidOptionIndex
	}
	l.answers[questionID] = optionIndex
	return nil
}

// Get returns the stored option index, or ok=false when unanswered.
func (l *AnswerLedger) Get(questionID uuid.UUID) (int, bool) {
	idx, ok := l.answers[questionID]
	return idx, ok
}

// Snapshot returns a copy of the current answers, safe to hand to grading
// while the ledger keeps mutating.
func (l *AnswerLedger) Snapshot() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}

// AnsweredCount returns how many questions have a recorded selection.
func (l *AnswerLedger) AnsweredCount() int {
	return len(l.answers)
}

// UnansweredCount returns how many questions have no selection yet.
// Advisory only — it never blocks submission.
func (l *AnswerLedger) UnansweredCount() int {
	return len(l.optionCounts) - len(l.answers)
}
