package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/alert-engine/internal/config"
	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/internal/observability"
	"github.com/spec-kit/alert-engine/internal/repository"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

func analysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{WindowDays: 30, MinOccurrences: 3, IntervalHours: 6, KeywordTopN: 8}
}

func networkTickets(n int, users int) []domain.Ticket {
	// Priorities rotate so no PRIORITY group reaches the threshold and
	// only the NETWORK category recurs.
	priorities := []domain.TicketPriority{
		domain.TicketPriorityLow,
		domain.TicketPriorityMedium,
		domain.TicketPriorityHigh,
		domain.TicketPriorityUrgent,
	}
	base := time.Now().Add(-72 * time.Hour)
	tickets := make([]domain.Ticket, 0, n)
	for i := 0; i < n; i++ {
		tickets = append(tickets, domain.Ticket{
			ID:              "t" + string(rune('1'+i)),
			Title:           "network outage in office",
			Description:     "switch unreachable, packet loss everywhere",
			Category:        "NETWORK",
			Priority:        priorities[i%len(priorities)],
			CreatedByUserID: "u" + string(rune('1'+i%users)),
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		})
	}
	return tickets
}

func newAnalysisFixture(tickets []domain.Ticket) (*AnalysisService, *repository.MemoryAlertRepository, *repository.MemoryTicketSnapshotReader) {
	repo := repository.NewMemoryAlertRepository()
	snapshots := repository.NewMemoryTicketSnapshotReader(tickets)
	svc := NewAnalysisService(analysisConfig(), AnalysisDependencies{
		Snapshots: snapshots,
		Alerts:    repo,
		Metrics:   observability.NewMetrics(),
	})
	return svc, repo, snapshots
}

func TestRunOnceCreatesAlertFromRecurringCategory(t *testing.T) {
	// 5 NETWORK tickets by 2 distinct users within the window.
	svc, repo, _ := newAnalysisFixture(networkTickets(5, 2))

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TicketsScanned)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Updated)

	open, err := repo.FindOpenByKey(context.Background(), domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"})
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, domain.AlertStatusActive, open.Status)
	assert.Equal(t, 5, open.OccurrenceCount)
	assert.Equal(t, 2, open.AffectedUsers)
	assert.Equal(t, domain.SeverityMedium, open.Severity)
	assert.Len(t, open.MemberTicketIDs, 5)
}

func TestRunOnceIsIdempotentOnUnchangedSnapshot(t *testing.T) {
	svc, repo, _ := newAnalysisFixture(networkTickets(5, 2))

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	first, err := repo.List(context.Background(), repository.AlertFilter{Limit: -1})
	require.NoError(t, err)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)

	second, err := repo.List(context.Background(), repository.AlertFilter{Limit: -1})
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range second {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.Equal(t, first[i].OccurrenceCount, second[i].OccurrenceCount)
	}
}

func TestRunOnceRefreshesAcknowledgedAlertWithoutStatusReset(t *testing.T) {
	tickets := networkTickets(5, 2)
	svc, repo, snapshots := newAnalysisFixture(tickets)

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	key := domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"}
	open, err := repo.FindOpenByKey(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, open)

	lifecycle := NewLifecycleService(LifecycleDependencies{Alerts: repo, Metrics: observability.NewMetrics()})
	_, err = lifecycle.Acknowledge(context.Background(), open.ID, "agent1", nil)
	require.NoError(t, err)

	// Three more NETWORK tickets appear; total 8 by 3 users.
	more := networkTickets(8, 3)
	snapshots.SetTickets(more)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.GreaterOrEqual(t, summary.Updated, 1)

	refreshed, err := repo.GetByID(context.Background(), open.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusAcknowledged, refreshed.Status)
	require.NotNil(t, refreshed.AcknowledgedByUserID)
	assert.Equal(t, "agent1", *refreshed.AcknowledgedByUserID)
	assert.Equal(t, 8, refreshed.OccurrenceCount)
	assert.Equal(t, domain.SeverityHigh, refreshed.Severity)
}

func TestRunOnceCreatesFreshAlertAfterResolution(t *testing.T) {
	svc, repo, _ := newAnalysisFixture(networkTickets(5, 2))

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	key := domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"}
	open, err := repo.FindOpenByKey(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, open)

	lifecycle := NewLifecycleService(LifecycleDependencies{Alerts: repo, Metrics: observability.NewMetrics()})
	_, err = lifecycle.Resolve(context.Background(), open.ID, "agent1", "Replaced faulty switch")
	require.NoError(t, err)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	reopened, err := repo.FindOpenByKey(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, reopened)
	assert.NotEqual(t, open.ID, reopened.ID)
	assert.Equal(t, domain.AlertStatusActive, reopened.Status)
}

func TestRunOnceFailsClosedWhenSnapshotUnavailable(t *testing.T) {
	svc, repo, snapshots := newAnalysisFixture(networkTickets(5, 2))
	snapshots.FailWith(errors.New("connection refused"))

	_, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, "SNAPSHOT_UNAVAILABLE", errorutil.ToDomainError(err).Code)

	// No partial writes.
	alerts, err := repo.List(context.Background(), repository.AlertFilter{Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

// racingAlertRepository applies mutate to the stored row right before the
// first UpdateVersioned, so that write loses the version race the way a
// concurrent lifecycle action would make it lose.
type racingAlertRepository struct {
	*repository.MemoryAlertRepository
	raced  bool
	mutate func(*domain.RecurringAlert)
}

func (r *racingAlertRepository) UpdateVersioned(ctx context.Context, alert *domain.RecurringAlert) error {
	if !r.raced {
		r.raced = true
		stored, err := r.MemoryAlertRepository.GetByID(ctx, alert.ID)
		if err != nil {
			return err
		}
		r.mutate(stored)
		if err := r.MemoryAlertRepository.UpdateVersioned(ctx, stored); err != nil {
			return err
		}
	}
	return r.MemoryAlertRepository.UpdateVersioned(ctx, alert)
}

func TestRunOnceReappliesStatsAfterConcurrentAcknowledge(t *testing.T) {
	base := repository.NewMemoryAlertRepository()
	racing := &racingAlertRepository{
		MemoryAlertRepository: base,
		mutate: func(alert *domain.RecurringAlert) {
			agent := "agent1"
			at := time.Now()
			alert.Status = domain.AlertStatusAcknowledged
			alert.AcknowledgedByUserID = &agent
			alert.AcknowledgedAt = &at
		},
	}
	snapshots := repository.NewMemoryTicketSnapshotReader(networkTickets(5, 2))
	svc := NewAnalysisService(analysisConfig(), AnalysisDependencies{
		Snapshots: snapshots,
		Alerts:    racing,
		Metrics:   observability.NewMetrics(),
	})

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	// 8 tickets by 3 users now; the stats refresh races the acknowledgement.
	snapshots.SetTickets(networkTickets(8, 3))
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, racing.raced)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.Updated)

	// The retry re-read keeps the agent's fields and reapplies the stats.
	key := domain.GroupKey{Type: domain.GroupTypeCategory, Value: "NETWORK"}
	refreshed, err := base.FindOpenByKey(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, domain.AlertStatusAcknowledged, refreshed.Status)
	require.NotNil(t, refreshed.AcknowledgedByUserID)
	assert.Equal(t, "agent1", *refreshed.AcknowledgedByUserID)
	assert.Equal(t, 8, refreshed.OccurrenceCount)
	assert.Equal(t, 3, refreshed.AffectedUsers)
	assert.Equal(t, domain.SeverityHigh, refreshed.Severity)
}

func TestRunOnceSkipsAlertResolvedMidPass(t *testing.T) {
	base := repository.NewMemoryAlertRepository()
	racing := &racingAlertRepository{
		MemoryAlertRepository: base,
		mutate: func(alert *domain.RecurringAlert) {
			agent := "agent1"
			at := time.Now()
			notes := "fixed upstream"
			alert.Status = domain.AlertStatusResolved
			alert.ResolvedByUserID = &agent
			alert.ResolvedAt = &at
			alert.Notes = &notes
		},
	}
	snapshots := repository.NewMemoryTicketSnapshotReader(networkTickets(5, 2))
	svc := NewAnalysisService(analysisConfig(), AnalysisDependencies{
		Snapshots: snapshots,
		Alerts:    racing,
		Metrics:   observability.NewMetrics(),
	})

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	snapshots.SetTickets(networkTickets(8, 3))
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, racing.raced)
	assert.Equal(t, 0, summary.Updated)

	// The resolved alert keeps the stats it closed with.
	resolved, err := base.List(context.Background(), repository.AlertFilter{
		Statuses: []domain.AlertStatus{domain.AlertStatusResolved},
		Limit:    -1,
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, 5, resolved[0].OccurrenceCount)
}

type heldLock struct{}

func (heldLock) Acquire(ctx context.Context) (bool, error) { return false, nil }
func (heldLock) Release(ctx context.Context) error         { return nil }

func TestRunOnceRejectedWhileLockHeldElsewhere(t *testing.T) {
	repo := repository.NewMemoryAlertRepository()
	svc := NewAnalysisService(analysisConfig(), AnalysisDependencies{
		Snapshots: repository.NewMemoryTicketSnapshotReader(networkTickets(5, 2)),
		Alerts:    repo,
		RunLock:   heldLock{},
		Metrics:   observability.NewMetrics(),
	})

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	alerts, listErr := repo.List(context.Background(), repository.AlertFilter{Limit: -1})
	require.NoError(t, listErr)
	assert.Empty(t, alerts)
}
