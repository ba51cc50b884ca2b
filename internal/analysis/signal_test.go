package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/alert-engine/internal/domain"
)

func textTicket(id, title, description string) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		Title:       title,
		Description: description,
		CreatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestKeywordsFrequencyAndStopWords(t *testing.T) {
	extractor := NewSignalExtractor(8)
	tickets := []domain.Ticket{
		textTicket("t1", "VPN connection drops", "the vpn connection drops every hour"),
		textTicket("t2", "VPN unstable", "vpn tunnel drops when switching networks"),
	}

	keywords := extractor.Keywords(tickets)
	require.NotEmpty(t, keywords)
	assert.Equal(t, "vpn", keywords[0])
	assert.Contains(t, keywords, "drops")
	assert.NotContains(t, keywords, "the")
	assert.NotContains(t, keywords, "when")
}

func TestKeywordsDropShortTokens(t *testing.T) {
	extractor := NewSignalExtractor(8)
	keywords := extractor.Keywords([]domain.Ticket{
		textTicket("t1", "PC is up", "my pc is ok no go"),
	})
	assert.Empty(t, keywords)
}

func TestKeywordsDeterministicWithFirstSeenTieBreak(t *testing.T) {
	extractor := NewSignalExtractor(3)
	tickets := []domain.Ticket{
		textTicket("t1", "printer jammed spooler stuck", ""),
		textTicket("t2", "printer jammed spooler stuck", ""),
	}

	first := extractor.Keywords(tickets)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, extractor.Keywords(tickets))
	}
	// All counts equal: first-seen order wins, capped at topN.
	assert.Equal(t, []string{"printer", "jammed", "spooler"}, first)
}

func TestKeywordsCappedAtTopN(t *testing.T) {
	extractor := NewSignalExtractor(2)
	keywords := extractor.Keywords([]domain.Ticket{
		textTicket("t1", "alpha beta gamma delta", ""),
	})
	assert.Len(t, keywords, 2)
}

func TestSuggestedActionUsesRuleTable(t *testing.T) {
	extractor := NewSignalExtractor(8)
	key := domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"}
	action := extractor.SuggestedAction(key, 5, []string{"vpn"})
	assert.Equal(t, "Check network stability at the locations filing these reports.", action)
}

func TestSuggestedActionFallbackReferencesCountAndKeyword(t *testing.T) {
	extractor := NewSignalExtractor(8)
	key := domain.GroupKey{Type: domain.GroupTypeCategory, Value: "FACILITIES"}

	withKeyword := extractor.SuggestedAction(key, 4, []string{"elevator"})
	assert.Contains(t, withKeyword, "4")
	assert.Contains(t, withKeyword, "elevator")
	assert.Contains(t, withKeyword, "FACILITIES")

	withoutKeyword := extractor.SuggestedAction(key, 4, nil)
	assert.Contains(t, withoutKeyword, "4")
	assert.Contains(t, withoutKeyword, "FACILITIES")
}
