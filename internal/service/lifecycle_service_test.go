package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/internal/observability"
	"github.com/spec-kit/alert-engine/internal/repository"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

func newLifecycleFixture(t *testing.T) (*LifecycleService, *repository.MemoryAlertRepository, string) {
	t.Helper()
	repo := repository.NewMemoryAlertRepository()
	svc := NewLifecycleService(LifecycleDependencies{
		Alerts:  repo,
		Metrics: observability.NewMetrics(),
	})

	alert := &domain.RecurringAlert{
		Key:             domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"},
		Label:           "NETWORK",
		Severity:        domain.SeverityMedium,
		OccurrenceCount: 5,
		AffectedUsers:   2,
		FirstOccurrence: time.Now().Add(-48 * time.Hour),
		LastOccurrence:  time.Now(),
		Status:          domain.AlertStatusActive,
		MemberTicketIDs: []string{"t1", "t2", "t3", "t4", "t5"},
	}
	require.NoError(t, repo.Create(context.Background(), alert))
	return svc, repo, alert.ID
}

func TestAcknowledgeRecordsActor(t *testing.T) {
	svc, _, alertID := newLifecycleFixture(t)

	alert, err := svc.Acknowledge(context.Background(), alertID, "agent1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusAcknowledged, alert.Status)
	require.NotNil(t, alert.AcknowledgedByUserID)
	assert.Equal(t, "agent1", *alert.AcknowledgedByUserID)
	assert.NotNil(t, alert.AcknowledgedAt)
}

func TestResolveRequiresNotes(t *testing.T) {
	svc, repo, alertID := newLifecycleFixture(t)

	_, err := svc.Resolve(context.Background(), alertID, "agent1", "  ")
	require.Error(t, err)
	domainErr := errorutil.ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)

	// No state change on failure.
	stored, err := repo.GetByID(context.Background(), alertID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusActive, stored.Status)
}

func TestResolveWithNotesSucceeds(t *testing.T) {
	svc, _, alertID := newLifecycleFixture(t)

	alert, err := svc.Resolve(context.Background(), alertID, "agent1", "Replaced faulty switch")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, alert.Status)
	require.NotNil(t, alert.ResolvedByUserID)
	assert.Equal(t, "agent1", *alert.ResolvedByUserID)
	require.NotNil(t, alert.Notes)
	assert.Equal(t, "Replaced faulty switch", *alert.Notes)
}

func TestResolveFromAcknowledged(t *testing.T) {
	svc, _, alertID := newLifecycleFixture(t)

	_, err := svc.Acknowledge(context.Background(), alertID, "agent1", nil)
	require.NoError(t, err)

	alert, err := svc.Resolve(context.Background(), alertID, "agent2", "Router firmware updated")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, alert.Status)
}

func TestTerminalStatesRejectFurtherTransitions(t *testing.T) {
	svc, _, alertID := newLifecycleFixture(t)

	_, err := svc.Resolve(context.Background(), alertID, "agent1", "done")
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), alertID, "agent2", nil)
	assert.Equal(t, "INVALID_TRANSITION", errorutil.ToDomainError(err).Code)

	_, err = svc.Dismiss(context.Background(), alertID, "agent2", nil)
	assert.Equal(t, "INVALID_TRANSITION", errorutil.ToDomainError(err).Code)

	// Re-submitting the same terminal action is rejected, not absorbed.
	_, err = svc.Resolve(context.Background(), alertID, "agent1", "done")
	assert.Equal(t, "INVALID_TRANSITION", errorutil.ToDomainError(err).Code)
}

func TestDismissFromActiveWithOptionalNotes(t *testing.T) {
	svc, _, alertID := newLifecycleFixture(t)

	notes := "duplicate of infra maintenance window"
	alert, err := svc.Dismiss(context.Background(), alertID, "agent1", &notes)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusDismissed, alert.Status)
	require.NotNil(t, alert.Notes)
	assert.Equal(t, notes, *alert.Notes)
}

func TestUnknownAlertIDReturnsNotFound(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)

	_, err := svc.Acknowledge(context.Background(), "missing-id", "agent1", nil)
	assert.Equal(t, "NOT_FOUND", errorutil.ToDomainError(err).Code)
}

func TestTransitionsAppendAuditTrail(t *testing.T) {
	svc, repo, alertID := newLifecycleFixture(t)

	_, err := svc.Acknowledge(context.Background(), alertID, "agent1", nil)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), alertID, "agent2", "Replaced faulty switch")
	require.NoError(t, err)

	audit, err := repo.ListAudit(context.Background(), alertID)
	require.NoError(t, err)
	require.Len(t, audit, 2)

	assert.Equal(t, domain.AlertStatusActive, audit[0].FromStatus)
	assert.Equal(t, domain.AlertStatusAcknowledged, audit[0].ToStatus)
	assert.Equal(t, "agent1", audit[0].ActingUserID)

	assert.Equal(t, domain.AlertStatusAcknowledged, audit[1].FromStatus)
	assert.Equal(t, domain.AlertStatusResolved, audit[1].ToStatus)
	assert.Equal(t, "agent2", audit[1].ActingUserID)
	require.NotNil(t, audit[1].Notes)
	assert.Equal(t, "Replaced faulty switch", *audit[1].Notes)
}

func TestStatsCountsByStatus(t *testing.T) {
	svc, repo, alertID := newLifecycleFixture(t)

	other := &domain.RecurringAlert{
		Key:    domain.GroupKey{Type: domain.GroupTypeCategory, Value: "EMAIL"},
		Label:  "EMAIL",
		Status: domain.AlertStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), other))

	_, err := svc.Acknowledge(context.Background(), alertID, "agent1", nil)
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Acknowledged)
	assert.Equal(t, int64(0), stats.Resolved)
}

// auditFailingRepository simulates the rolled-back transaction: when the
// audit insert cannot succeed, neither does the status write.
type auditFailingRepository struct {
	*repository.MemoryAlertRepository
	err error
}

func (r *auditFailingRepository) UpdateVersionedWithAudit(ctx context.Context, alert *domain.RecurringAlert, entry *domain.AlertAudit) error {
	return r.err
}

func TestResolveFailsWhenAuditCannotBeRecorded(t *testing.T) {
	base := repository.NewMemoryAlertRepository()
	alert := &domain.RecurringAlert{
		Key:    domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"},
		Label:  "NETWORK",
		Status: domain.AlertStatusActive,
	}
	require.NoError(t, base.Create(context.Background(), alert))

	wrapped := &auditFailingRepository{MemoryAlertRepository: base, err: errors.New("audit insert failed")}
	svc := NewLifecycleService(LifecycleDependencies{Alerts: wrapped, Metrics: observability.NewMetrics()})

	_, err := svc.Resolve(context.Background(), alert.ID, "agent1", "Replaced faulty switch")
	require.Error(t, err)

	// The transition must not land without its audit record.
	stored, err := base.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusActive, stored.Status)
	assert.Nil(t, stored.ResolvedByUserID)

	audit, err := base.ListAudit(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Empty(t, audit)
}

// conflictingRepository rejects the first N writes with a version conflict,
// standing in for a reconciliation pass landing between read and write.
type conflictingRepository struct {
	*repository.MemoryAlertRepository
	remaining int
	calls     int
}

func (r *conflictingRepository) UpdateVersionedWithAudit(ctx context.Context, alert *domain.RecurringAlert, entry *domain.AlertAudit) error {
	r.calls++
	if r.remaining > 0 {
		r.remaining--
		return repository.ErrVersionConflict
	}
	return r.MemoryAlertRepository.UpdateVersionedWithAudit(ctx, alert, entry)
}

func TestTransitionRetriesOnceAfterVersionConflict(t *testing.T) {
	base := repository.NewMemoryAlertRepository()
	alert := &domain.RecurringAlert{
		Key:    domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"},
		Label:  "NETWORK",
		Status: domain.AlertStatusActive,
	}
	require.NoError(t, base.Create(context.Background(), alert))

	wrapped := &conflictingRepository{MemoryAlertRepository: base, remaining: 1}
	svc := NewLifecycleService(LifecycleDependencies{Alerts: wrapped, Metrics: observability.NewMetrics()})

	updated, err := svc.Acknowledge(context.Background(), alert.ID, "agent1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusAcknowledged, updated.Status)
	assert.Equal(t, 2, wrapped.calls)

	audit, err := base.ListAudit(context.Background(), alert.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, domain.AlertStatusAcknowledged, audit[0].ToStatus)
}

func TestTransitionSurfacesConflictWhenRetriesExhausted(t *testing.T) {
	base := repository.NewMemoryAlertRepository()
	alert := &domain.RecurringAlert{
		Key:    domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"},
		Label:  "NETWORK",
		Status: domain.AlertStatusActive,
	}
	require.NoError(t, base.Create(context.Background(), alert))

	wrapped := &conflictingRepository{MemoryAlertRepository: base, remaining: 2}
	svc := NewLifecycleService(LifecycleDependencies{Alerts: wrapped, Metrics: observability.NewMetrics()})

	_, err := svc.Acknowledge(context.Background(), alert.ID, "agent1", nil)
	assert.Equal(t, "CONFLICT", errorutil.ToDomainError(err).Code)
	assert.Equal(t, 2, wrapped.calls)

	stored, err := base.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusActive, stored.Status)
}

func TestListAlertsFiltersByStatus(t *testing.T) {
	svc, _, alertID := newLifecycleFixture(t)

	_, err := svc.Acknowledge(context.Background(), alertID, "agent1", nil)
	require.NoError(t, err)

	acked := domain.AlertStatusAcknowledged
	alerts, err := svc.ListAlerts(context.Background(), &acked, 10, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alertID, alerts[0].ID)

	active := domain.AlertStatusActive
	alerts, err = svc.ListAlerts(context.Background(), &active, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
