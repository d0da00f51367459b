// Package grading scores a finished attempt against its exam definition.
// Grading is a pure function of its inputs: no I/O, no randomness, no
// dependence on the wall clock beyond the submittedAt stamp it is handed.
package grading

import (
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/attemptd/internal/model"
)

// Grade scores the answer snapshot against the exam definition, walking
// questions in exam order. An unanswered question earns zero marks, same
// as a wrong answer. TotalScore is recomputed from the definition — never
// trusted from the client.
//
// Returns model.ErrMalformedExam when the definition fails its integrity
// checks; nothing is graded in that case.
func Grade(exam *model.ExamDefinition, studentID int, answers map[uuid.UUID]int, submittedAt time.Time) (*model.GradedResult, error) {
	if err := exam.Validate(); err != nil {
		return nil, err
	}

	perQuestion := make([]model.QuestionResult, 0, len(exam.Questions))
	obtained := 0

	for i := range exam.Questions {
		q := &exam.Questions[i]
		qr := model.QuestionResult{
			QuestionID:    q.ID,
			CorrectAnswer: q.CorrectOption,
			Marks:         q.Marks,
		}

		if selected, ok := answers[q.ID]; ok {
			sel := selected
			qr.StudentAnswer = &sel
			qr.IsCorrect = selected == q.CorrectOption
		}
		if qr.IsCorrect {
			qr.ObtainedMarks = q.Marks
			obtained += q.Marks
		}

		perQuestion = append(perQuestion, qr)
	}

	total := exam.TotalMarks()
	var percentage float64
	if total > 0 {
		percentage = float64(obtained) / float64(total) * 100
	}

	return &model.GradedResult{
		ExamID:        exam.ID,
		StudentID:     studentID,
		SubmittedAt:   submittedAt,
		TotalScore:    total,
		ObtainedScore: obtained,
		Percentage:    percentage,
		PerQuestion:   perQuestion,
	}, nil
}
