package analysis

import "github.com/spec-kit/alert-engine/internal/domain"

// SeverityClassifier maps group statistics to a severity level. The rules
// are ordered and deterministic; severity is always recomputed from
// current statistics, never hand-edited.
type SeverityClassifier struct {
	minOccurrences int
}

// NewSeverityClassifier builds a classifier sharing the aggregator's
// inclusion threshold, which doubles as the MEDIUM floor.
func NewSeverityClassifier(minOccurrences int) *SeverityClassifier {
	if minOccurrences < 1 {
		minOccurrences = 1
	}
	return &SeverityClassifier{minOccurrences: minOccurrences}
}

// Classify applies the threshold rules in order, first match wins.
// Breadth of impact (affected users) can escalate severity on its own so
// one chatty user cannot be mistaken for a systemic fault, while raw
// count still catches near-duplicate filings from a single department.
func (c *SeverityClassifier) Classify(occurrenceCount, affectedUsers int) domain.Severity {
	switch {
	case occurrenceCount >= 10 || affectedUsers >= 8:
		return domain.SeverityCritical
	case occurrenceCount >= 6 || (occurrenceCount >= 4 && affectedUsers >= 4):
		return domain.SeverityHigh
	case occurrenceCount >= c.minOccurrences:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
