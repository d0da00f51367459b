package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrExamNotFound  ErrCode = "EXAM_NOT_FOUND"
	ErrMalformedExam ErrCode = "MALFORMED_EXAM"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNoActiveAttempt     ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrAttemptSubmitted    ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrUnknownQuestion     ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidOptionIndex  ErrCode = "INVALID_OPTION_INDEX"
	ErrNotAcceptingAnswers ErrCode = "ATTEMPT_NOT_ACCEPTING_ANSWERS"
	ErrSubmitPending       ErrCode = "SUBMIT_PENDING"
	ErrResultNotFound      ErrCode = "RESULT_NOT_FOUND"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrExamNotFound:
		return "The exam was not found."
	case ErrMalformedExam:
		return "The exam definition is malformed and cannot be attempted."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrNoActiveAttempt:
		return "You have no active attempt for this exam."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrUnknownQuestion:
		return "The question does not belong to this exam."
	case ErrInvalidOptionIndex:
		return "The selected option is out of range for this question."
	case ErrNotAcceptingAnswers:
		return "The attempt is no longer accepting answers."
	case ErrSubmitPending:
		return "A previous submission is unresolved. Reconcile the attempt first."
	case ErrResultNotFound:
		return "No graded result exists for this attempt."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
