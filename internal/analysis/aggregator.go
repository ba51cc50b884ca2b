package analysis

import (
	"sort"
	"time"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// Aggregator partitions a ticket snapshot into candidate groups by
// category, tag and priority and computes per-group statistics.
type Aggregator struct {
	minOccurrences int
}

// NewAggregator builds an aggregator. Groups with fewer than
// minOccurrences member tickets are discarded.
func NewAggregator(minOccurrences int) *Aggregator {
	if minOccurrences < 1 {
		minOccurrences = 1
	}
	return &Aggregator{minOccurrences: minOccurrences}
}

type groupAccumulator struct {
	memberIDs []string
	users     map[string]struct{}
	first     time.Time
	last      time.Time
}

// Aggregate computes the candidate list for one snapshot. Output order is
// deterministic: descending occurrence count, ties broken by ascending
// group key string.
func (a *Aggregator) Aggregate(tickets []domain.Ticket) []domain.AlertCandidate {
	groups := make(map[domain.GroupKey]*groupAccumulator)

	for _, ticket := range tickets {
		a.add(groups, domain.GroupKey{Type: domain.GroupTypeCategory, Value: ticket.Category}, ticket)
		a.add(groups, domain.GroupKey{Type: domain.GroupTypePriority, Value: string(ticket.Priority)}, ticket)
		for _, tagID := range ticket.TagIDs {
			a.add(groups, domain.GroupKey{Type: domain.GroupTypeTag, Value: tagID}, ticket)
		}
	}

	candidates := make([]domain.AlertCandidate, 0, len(groups))
	for key, acc := range groups {
		if len(acc.memberIDs) < a.minOccurrences {
			continue
		}
		candidates = append(candidates, domain.AlertCandidate{
			Key:               key,
			MemberTicketIDs:   acc.memberIDs,
			OccurrenceCount:   len(acc.memberIDs),
			AffectedUserCount: len(acc.users),
			FirstOccurrence:   acc.first,
			LastOccurrence:    acc.last,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].OccurrenceCount != candidates[j].OccurrenceCount {
			return candidates[i].OccurrenceCount > candidates[j].OccurrenceCount
		}
		return candidates[i].Key.String() < candidates[j].Key.String()
	})
	return candidates
}

func (a *Aggregator) add(groups map[domain.GroupKey]*groupAccumulator, key domain.GroupKey, ticket domain.Ticket) {
	if key.Value == "" {
		return
	}
	acc, ok := groups[key]
	if !ok {
		acc = &groupAccumulator{
			users: make(map[string]struct{}),
			first: ticket.CreatedAt,
			last:  ticket.CreatedAt,
		}
		groups[key] = acc
	}
	acc.memberIDs = append(acc.memberIDs, ticket.ID)
	acc.users[ticket.CreatedByUserID] = struct{}{}
	if ticket.CreatedAt.Before(acc.first) {
		acc.first = ticket.CreatedAt
	}
	if ticket.CreatedAt.After(acc.last) {
		acc.last = ticket.CreatedAt
	}
}
