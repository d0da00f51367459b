package service

import "errors"

var (
	// ErrExamNotFound means the exam id resolves to nothing in cache or store.
	ErrExamNotFound = errors.New("exam not found")

	// ErrNoActiveAttempt means the student has no live attempt for the exam.
	ErrNoActiveAttempt = errors.New("no active attempt for this exam")

	// ErrAttemptCompleted means a graded result already exists; retakes are
	// not allowed, so a new attempt cannot start.
	ErrAttemptCompleted = errors.New("attempt already completed, retakes are not allowed")
)
