package service

import (
	"github.com/spec-kit/alert-engine/internal/analysis"
	"github.com/spec-kit/alert-engine/internal/domain"
)

// ReconcileResult separates alerts to insert from alerts to refresh.
type ReconcileResult struct {
	ToCreate []domain.RecurringAlert
	ToUpdate []domain.RecurringAlert
}

// Reconciler merges freshly computed candidates against the existing open
// alert set. It is a pure computation; persistence happens in
// AnalysisService under the single-writer run guarantee.
type Reconciler struct {
	classifier *analysis.SeverityClassifier
	extractor  *analysis.SignalExtractor
}

// NewReconciler builds a reconciler.
func NewReconciler(classifier *analysis.SeverityClassifier, extractor *analysis.SignalExtractor) *Reconciler {
	return &Reconciler{classifier: classifier, extractor: extractor}
}

// Reconcile walks candidates in their deterministic order. A candidate
// whose key has an open alert refreshes that alert's statistics, keywords,
// suggestion and severity; status and acknowledgement fields are never
// touched here. A candidate without an open alert becomes a new ACTIVE
// alert. Open alerts whose pattern stopped recurring are left alone:
// closure is always an explicit, audited human action.
func (r *Reconciler) Reconcile(candidates []domain.AlertCandidate, existing []domain.RecurringAlert, ticketsByID map[string]domain.Ticket) ReconcileResult {
	openByKey := make(map[domain.GroupKey]domain.RecurringAlert, len(existing))
	for _, alert := range existing {
		if alert.Status.IsOpen() {
			openByKey[alert.Key] = alert
		}
	}

	var result ReconcileResult
	for _, candidate := range candidates {
		members := make([]domain.Ticket, 0, len(candidate.MemberTicketIDs))
		for _, id := range candidate.MemberTicketIDs {
			if ticket, ok := ticketsByID[id]; ok {
				members = append(members, ticket)
			}
		}
		keywords := r.extractor.Keywords(members)
		severity := r.classifier.Classify(candidate.OccurrenceCount, candidate.AffectedUserCount)
		suggestion := r.extractor.SuggestedAction(candidate.Key, candidate.OccurrenceCount, keywords)

		if open, ok := openByKey[candidate.Key]; ok {
			open.OccurrenceCount = candidate.OccurrenceCount
			open.AffectedUsers = candidate.AffectedUserCount
			open.FirstOccurrence = candidate.FirstOccurrence
			open.LastOccurrence = candidate.LastOccurrence
			open.MemberTicketIDs = candidate.MemberTicketIDs
			open.Keywords = keywords
			open.SuggestedAction = suggestion
			open.Severity = severity
			result.ToUpdate = append(result.ToUpdate, open)
			continue
		}

		result.ToCreate = append(result.ToCreate, domain.RecurringAlert{
			Key:             candidate.Key,
			Label:           labelFor(candidate.Key),
			Severity:        severity,
			OccurrenceCount: candidate.OccurrenceCount,
			AffectedUsers:   candidate.AffectedUserCount,
			FirstOccurrence: candidate.FirstOccurrence,
			LastOccurrence:  candidate.LastOccurrence,
			Keywords:        keywords,
			SuggestedAction: suggestion,
			Status:          domain.AlertStatusActive,
			MemberTicketIDs: candidate.MemberTicketIDs,
		})
	}
	return result
}

// labelFor renders a human-readable label for a group key. The engine
// does not own the tag catalog, so tag groups keep the id visible.
func labelFor(key domain.GroupKey) string {
	switch key.Type {
	case domain.GroupTypeTag:
		return "tag:" + key.Value
	default:
		return key.Value
	}
}
