package events

import (
	"time"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAlertCreated      EventType = "alert_created"
	EventAlertStatsUpdated EventType = "alert_stats_updated"
	EventAlertAcknowledged EventType = "alert_acknowledged"
	EventAlertResolved     EventType = "alert_resolved"
	EventAlertDismissed    EventType = "alert_dismissed"
)

// Event represents a domain event emitted by the engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AlertID   string      `json:"alert_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AlertCreatedPayload payload.
type AlertCreatedPayload struct {
	GroupType       domain.GroupType `json:"group_type"`
	GroupKey        string           `json:"group_key"`
	Severity        domain.Severity  `json:"severity"`
	OccurrenceCount int              `json:"occurrence_count"`
	AffectedUsers   int              `json:"affected_users"`
}

// AlertStatsUpdatedPayload payload.
type AlertStatsUpdatedPayload struct {
	OccurrenceCount int             `json:"occurrence_count"`
	AffectedUsers   int             `json:"affected_users"`
	NewSeverity     domain.Severity `json:"new_severity"`
}

// AlertStatusChangedPayload payload for lifecycle transitions.
type AlertStatusChangedPayload struct {
	OldStatus    domain.AlertStatus `json:"old_status"`
	NewStatus    domain.AlertStatus `json:"new_status"`
	ActingUserID string             `json:"acting_user_id"`
	Notes        *string            `json:"notes,omitempty"`
}
