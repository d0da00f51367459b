package model

import (
	"errors"

	"github.com/google/uuid"
)

// ErrMalformedExam indicates a corrupt exam definition (a question with no
// options or a correct-answer index outside its options range). Such an
// exam cannot be administered or graded and must be fixed upstream.
var ErrMalformedExam = errors.New("malformed exam definition")

// ExamDefinition is the full, grading-capable exam. It is read-only for the
// duration of a session and must never be sent to a client while an attempt
// is in progress — use Paper() for the student-facing view.
type ExamDefinition struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration_seconds"`
	Questions       []Question `json:"questions"`
}

// Question is a single multiple-choice question with its answer key.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	Marks         int       `json:"marks"`
	CorrectOption int       `json:"correct_option"`
}

// TotalMarks is the sum of marks over all questions.
func (e *ExamDefinition) TotalMarks() int {
	total := 0
	for i := range e.Questions {
		total += e.Questions[i].Marks
	}
	return total
}

// Validate checks the integrity invariants of the definition. A failure is
// a data error from the authoring side, not a user-facing condition.
func (e *ExamDefinition) Validate() error {
	if e.DurationSeconds <= 0 {
		return ErrMalformedExam
	}
	for i := range e.Questions {
		q := &e.Questions[i]
		if len(q.Options) == 0 {
			return ErrMalformedExam
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			return ErrMalformedExam
		}
		if q.Marks <= 0 {
			return ErrMalformedExam
		}
	}
	return nil
}

// Paper returns the student-facing payload with correct answers withheld.
func (e *ExamDefinition) Paper() *AttemptPaper {
	questions := make([]QuestionForStudent, len(e.Questions))
	for i := range e.Questions {
		q := &e.Questions[i]
		questions[i] = QuestionForStudent{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
			Marks:   q.Marks,
		}
	}
	return &AttemptPaper{
		ExamID:          e.ID,
		Title:           e.Title,
		DurationSeconds: e.DurationSeconds,
		TotalMarks:      e.TotalMarks(),
		Questions:       questions,
	}
}

// AttemptPaper is the exam as delivered to a student (no answer key).
type AttemptPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	DurationSeconds int                  `json:"duration_seconds"`
	TotalMarks      int                  `json:"total_marks"`
	Questions       []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
	Marks   int       `json:"marks"`
}
