package grading

// Band is a named display tier derived from the percentage score. It is
// never persisted — callers derive it on demand.
type Band string

const (
	BandExcellent  Band = "EXCELLENT"
	BandVeryGood   Band = "VERY_GOOD"
	BandGood       Band = "GOOD"
	BandAcceptable Band = "ACCEPTABLE"
	BandFail       Band = "FAIL"
)

// BandFor classifies a percentage into its grade band. Lower bounds are
// closed: exactly 50.0 is ACCEPTABLE, exactly 90.0 is EXCELLENT.
func BandFor(percentage float64) Band {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 80:
		return BandVeryGood
	case percentage >= 70:
		return BandGood
	case percentage >= 50:
		return BandAcceptable
	default:
		return BandFail
	}
}
