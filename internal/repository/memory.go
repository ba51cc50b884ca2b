package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// MemoryAlertRepository is an in-memory AlertRepository with the same
// version-CAS semantics as the postgres implementation. It backs tests and
// DSN-less dev mode.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]domain.RecurringAlert
	audit  []domain.AlertAudit
}

// NewMemoryAlertRepository builds an empty store.
func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{alerts: make(map[string]domain.RecurringAlert)}
}

func (m *MemoryAlertRepository) Create(ctx context.Context, alert *domain.RecurringAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.alerts {
		if existing.Key == alert.Key && existing.Status.IsOpen() {
			return fmt.Errorf("open alert already exists for key %s", alert.Key)
		}
	}

	now := time.Now()
	alert.ID = uuid.NewString()
	alert.Version = 1
	alert.CreatedAt = now
	alert.UpdatedAt = now
	m.alerts[alert.ID] = cloneAlert(*alert)
	return nil
}

func (m *MemoryAlertRepository) GetByID(ctx context.Context, id string) (*domain.RecurringAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, ErrAlertMissing)
	}
	copied := cloneAlert(alert)
	return &copied, nil
}

func (m *MemoryAlertRepository) FindOpenByKey(ctx context.Context, key domain.GroupKey) (*domain.RecurringAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, alert := range m.alerts {
		if alert.Key == key && alert.Status.IsOpen() {
			copied := cloneAlert(alert)
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MemoryAlertRepository) ListOpen(ctx context.Context) ([]domain.RecurringAlert, error) {
	return m.List(ctx, AlertFilter{
		Statuses: []domain.AlertStatus{domain.AlertStatusActive, domain.AlertStatusAcknowledged},
		Limit:    -1,
	})
}

func (m *MemoryAlertRepository) List(ctx context.Context, filter AlertFilter) ([]domain.RecurringAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.RecurringAlert
	for _, alert := range m.alerts {
		if len(filter.Statuses) > 0 && !statusIn(alert.Status, filter.Statuses) {
			continue
		}
		result = append(result, cloneAlert(alert))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastOccurrence.Equal(result[j].LastOccurrence) {
			return result[i].LastOccurrence.After(result[j].LastOccurrence)
		}
		return result[i].ID < result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MemoryAlertRepository) CountByStatus(ctx context.Context) (map[domain.AlertStatus]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[domain.AlertStatus]int64)
	for _, alert := range m.alerts {
		counts[alert.Status]++
	}
	return counts, nil
}

func (m *MemoryAlertRepository) UpdateVersioned(ctx context.Context, alert *domain.RecurringAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateVersionedLocked(alert)
}

// UpdateVersionedWithAudit mirrors the postgres transaction: the status
// write and the audit entry land under one lock acquisition or not at all.
func (m *MemoryAlertRepository) UpdateVersionedWithAudit(ctx context.Context, alert *domain.RecurringAlert, entry *domain.AlertAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.updateVersionedLocked(alert); err != nil {
		return err
	}
	m.appendAuditLocked(entry)
	return nil
}

func (m *MemoryAlertRepository) updateVersionedLocked(alert *domain.RecurringAlert) error {
	stored, ok := m.alerts[alert.ID]
	if !ok {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrAlertMissing)
	}
	if stored.Version != alert.Version {
		return ErrVersionConflict
	}

	alert.Version++
	alert.UpdatedAt = time.Now()
	alert.CreatedAt = stored.CreatedAt
	m.alerts[alert.ID] = cloneAlert(*alert)
	return nil
}

func (m *MemoryAlertRepository) appendAuditLocked(entry *domain.AlertAudit) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	m.audit = append(m.audit, cloneAudit(*entry))
}

func (m *MemoryAlertRepository) ListAudit(ctx context.Context, alertID string) ([]domain.AlertAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.AlertAudit
	for _, entry := range m.audit {
		if entry.AlertID == alertID {
			result = append(result, cloneAudit(entry))
		}
	}
	return result, nil
}

// MemoryTicketSnapshotReader serves a fixed ticket snapshot, used by tests
// and dev mode.
type MemoryTicketSnapshotReader struct {
	mu      sync.RWMutex
	tickets []domain.Ticket
	err     error
}

// NewMemoryTicketSnapshotReader builds a reader over the given tickets.
func NewMemoryTicketSnapshotReader(tickets []domain.Ticket) *MemoryTicketSnapshotReader {
	return &MemoryTicketSnapshotReader{tickets: tickets}
}

// SetTickets replaces the snapshot contents.
func (m *MemoryTicketSnapshotReader) SetTickets(tickets []domain.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets = tickets
}

// FailWith makes subsequent reads return err, simulating an unreachable
// ticket source.
func (m *MemoryTicketSnapshotReader) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryTicketSnapshotReader) ListCreatedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	var result []domain.Ticket
	for _, ticket := range m.tickets {
		if !ticket.CreatedAt.Before(since) {
			result = append(result, ticket)
		}
	}
	return result, nil
}

func statusIn(status domain.AlertStatus, set []domain.AlertStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func cloneAlert(alert domain.RecurringAlert) domain.RecurringAlert {
	alert.Keywords = append([]string(nil), alert.Keywords...)
	alert.MemberTicketIDs = append([]string(nil), alert.MemberTicketIDs...)
	alert.AcknowledgedByUserID = cloneStr(alert.AcknowledgedByUserID)
	alert.AcknowledgedAt = cloneTime(alert.AcknowledgedAt)
	alert.ResolvedByUserID = cloneStr(alert.ResolvedByUserID)
	alert.ResolvedAt = cloneTime(alert.ResolvedAt)
	alert.Notes = cloneStr(alert.Notes)
	return alert
}

func cloneAudit(entry domain.AlertAudit) domain.AlertAudit {
	entry.Notes = cloneStr(entry.Notes)
	return entry
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
