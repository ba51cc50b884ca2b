package analysis

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// SignalExtractor derives keyword sets and suggested-action text from
// member tickets. Both outputs are pure functions of their inputs so
// repeated reconciliation runs do not thrash stored text.
type SignalExtractor struct {
	topN int
}

// NewSignalExtractor builds an extractor returning at most topN keywords.
func NewSignalExtractor(topN int) *SignalExtractor {
	if topN < 1 {
		topN = 8
	}
	return &SignalExtractor{topN: topN}
}

// stopWords lists tokens carrying no signal in ticket prose. Tokens
// shorter than three characters are dropped before this set applies.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "not": {}, "with": {}, "this": {},
	"that": {}, "have": {}, "has": {}, "had": {}, "from": {}, "are": {},
	"was": {}, "were": {}, "you": {}, "your": {}, "but": {}, "can": {},
	"all": {}, "our": {}, "out": {}, "when": {}, "what": {}, "why": {},
	"how": {}, "who": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"please": {}, "any": {}, "its": {}, "does": {}, "doesnt": {}, "dont": {},
	"cant": {}, "still": {}, "after": {}, "before": {}, "again": {},
	"since": {}, "about": {}, "there": {}, "them": {}, "they": {},
	"been": {}, "being": {}, "get": {}, "got": {}, "getting": {},
	"help": {}, "hello": {}, "thanks": {}, "thank": {}, "regards": {},
}

// Keywords tokenizes the member tickets' titles and descriptions and
// returns the top-N tokens by frequency. Ties break by first-seen order,
// which tracks ticket order and is therefore stable across reruns of the
// same snapshot.
func (e *SignalExtractor) Keywords(tickets []domain.Ticket) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	position := 0

	for _, ticket := range tickets {
		for _, token := range tokenize(ticket.Title + " " + ticket.Description) {
			if len(token) < 3 {
				continue
			}
			if _, skip := stopWords[token]; skip {
				continue
			}
			if _, seen := counts[token]; !seen {
				firstSeen[token] = position
				position++
			}
			counts[token]++
		}
	}

	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return firstSeen[tokens[i]] < firstSeen[tokens[j]]
	})

	if len(tokens) > e.topN {
		tokens = tokens[:e.topN]
	}
	return tokens
}

// suggestionRules maps well-known group keys to operator guidance.
// Unknown keys fall through to the generic template.
var suggestionRules = map[domain.GroupKey]string{
	{Type: domain.GroupTypeCategory, Value: "NETWORK"}:  "Check network stability at the locations filing these reports.",
	{Type: domain.GroupTypeCategory, Value: "HARDWARE"}: "Inspect the affected hardware for a common batch fault.",
	{Type: domain.GroupTypeCategory, Value: "SOFTWARE"}: "Review recent software deployments and consider a rollback.",
	{Type: domain.GroupTypeCategory, Value: "ACCOUNT"}:  "Audit account provisioning and password reset flows.",
	{Type: domain.GroupTypeCategory, Value: "EMAIL"}:    "Verify mail server queues and spam filter configuration.",
	{Type: domain.GroupTypeCategory, Value: "PRINTER"}:  "Check shared printer drivers and print server health.",
	{Type: domain.GroupTypePriority, Value: "URGENT"}:   "Review urgent-queue staffing and escalation paths.",
}

// SuggestedAction returns deterministic guidance text for a group.
func (e *SignalExtractor) SuggestedAction(key domain.GroupKey, occurrenceCount int, keywords []string) string {
	if action, ok := suggestionRules[key]; ok {
		return action
	}
	if len(keywords) > 0 {
		return fmt.Sprintf("%d similar tickets reported for %s; investigate recurring %q reports.",
			occurrenceCount, key.Value, keywords[0])
	}
	return fmt.Sprintf("%d similar tickets reported for %s; investigate the shared root cause.",
		occurrenceCount, key.Value)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
