package domain

import "time"

// GroupType identifies the dimension a group of tickets shares.
type GroupType string

const (
	GroupTypeCategory GroupType = "CATEGORY"
	GroupTypeTag      GroupType = "TAG"
	GroupTypePriority GroupType = "PRIORITY"
)

// GroupKey identifies one candidate group: a dimension plus its value
// (category name, tag id or priority value).
type GroupKey struct {
	Type  GroupType
	Value string
}

// String renders the key in TYPE:value form, used for deterministic
// ordering and log output.
func (k GroupKey) String() string {
	return string(k.Type) + ":" + k.Value
}

// Severity classifies how urgent a recurring alert is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AlertStatus enumerates lifecycle states for recurring alerts.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusDismissed    AlertStatus = "DISMISSED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s AlertStatus) IsTerminal() bool {
	return s == AlertStatusResolved || s == AlertStatusDismissed
}

// IsOpen reports whether an alert in this status still claims its group
// key. At most one open alert may exist per key.
func (s AlertStatus) IsOpen() bool {
	return s == AlertStatusActive || s == AlertStatusAcknowledged
}

// AlertCandidate is a freshly computed grouping of tickets sharing a
// dimension value. Candidates are ephemeral; they exist only for the
// duration of one analysis run.
type AlertCandidate struct {
	Key               GroupKey
	MemberTicketIDs   []string
	OccurrenceCount   int
	AffectedUserCount int
	FirstOccurrence   time.Time
	LastOccurrence    time.Time
}

// RecurringAlert is the persisted record of a recognized recurring issue.
type RecurringAlert struct {
	ID                   string
	Key                  GroupKey
	Label                string
	Severity             Severity
	OccurrenceCount      int
	AffectedUsers        int
	FirstOccurrence      time.Time
	LastOccurrence       time.Time
	Keywords             []string
	SuggestedAction      string
	Status               AlertStatus
	AcknowledgedByUserID *string
	AcknowledgedAt       *time.Time
	ResolvedByUserID     *string
	ResolvedAt           *time.Time
	Notes                *string
	MemberTicketIDs      []string
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AlertAudit is an immutable record of one lifecycle transition.
type AlertAudit struct {
	ID           string
	AlertID      string
	FromStatus   AlertStatus
	ToStatus     AlertStatus
	ActingUserID string
	Notes        *string
	CreatedAt    time.Time
}
