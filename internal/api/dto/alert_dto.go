package dto

import (
	"time"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// AlertActionRequest payload for acknowledge/dismiss. Notes optional.
type AlertActionRequest struct {
	Notes *string `json:"notes"`
}

// ResolveAlertRequest payload. Notes mandatory.
type ResolveAlertRequest struct {
	Notes string `json:"notes"`
}

// TriggerAnalysisResponse reports whether an out-of-cycle pass was started.
type TriggerAnalysisResponse struct {
	Accepted bool `json:"accepted"`
}

// AlertResponse renders one recurring alert.
type AlertResponse struct {
	ID                   string             `json:"id"`
	GroupType            domain.GroupType   `json:"group_type"`
	GroupKey             string             `json:"group_key"`
	Label                string             `json:"label"`
	Severity             domain.Severity    `json:"severity"`
	OccurrenceCount      int                `json:"occurrence_count"`
	AffectedUsers        int                `json:"affected_users"`
	FirstOccurrence      time.Time          `json:"first_occurrence"`
	LastOccurrence       time.Time          `json:"last_occurrence"`
	Keywords             []string           `json:"keywords"`
	SuggestedAction      string             `json:"suggested_action"`
	Status               domain.AlertStatus `json:"status"`
	AcknowledgedByUserID *string            `json:"acknowledged_by_user_id,omitempty"`
	AcknowledgedAt       *time.Time         `json:"acknowledged_at,omitempty"`
	ResolvedByUserID     *string            `json:"resolved_by_user_id,omitempty"`
	ResolvedAt           *time.Time         `json:"resolved_at,omitempty"`
	Notes                *string            `json:"notes,omitempty"`
	MemberTicketIDs      []string           `json:"member_ticket_ids"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// AlertAuditResponse renders one audit trail entry.
type AlertAuditResponse struct {
	ID           string             `json:"id"`
	FromStatus   domain.AlertStatus `json:"from_status"`
	ToStatus     domain.AlertStatus `json:"to_status"`
	ActingUserID string             `json:"acting_user_id"`
	Notes        *string            `json:"notes,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// AlertDetailResponse is an alert plus its audit history.
type AlertDetailResponse struct {
	AlertResponse
	Audit []AlertAuditResponse `json:"audit"`
}

// AlertStatsResponse gives counts by status.
type AlertStatsResponse struct {
	Total        int64 `json:"total"`
	Active       int64 `json:"active"`
	Acknowledged int64 `json:"acknowledged"`
	Resolved     int64 `json:"resolved"`
	Dismissed    int64 `json:"dismissed"`
}
