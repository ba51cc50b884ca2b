package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/alert-engine/internal/domain"
)

func sampleAlert(key string) *domain.RecurringAlert {
	return &domain.RecurringAlert{
		Key:             domain.GroupKey{Type: domain.GroupTypeCategory, Value: key},
		Label:           key,
		Severity:        domain.SeverityMedium,
		OccurrenceCount: 3,
		AffectedUsers:   2,
		FirstOccurrence: time.Now().Add(-24 * time.Hour),
		LastOccurrence:  time.Now(),
		Status:          domain.AlertStatusActive,
		MemberTicketIDs: []string{"t1", "t2", "t3"},
	}
}

func TestCreateAssignsIDAndVersion(t *testing.T) {
	repo := NewMemoryAlertRepository()
	alert := sampleAlert("NETWORK")

	require.NoError(t, repo.Create(context.Background(), alert))
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, int64(1), alert.Version)
}

func TestCreateRejectsSecondOpenAlertForSameKey(t *testing.T) {
	repo := NewMemoryAlertRepository()
	require.NoError(t, repo.Create(context.Background(), sampleAlert("NETWORK")))

	err := repo.Create(context.Background(), sampleAlert("NETWORK"))
	assert.Error(t, err)
}

func TestUpdateVersionedDetectsConflict(t *testing.T) {
	repo := NewMemoryAlertRepository()
	alert := sampleAlert("NETWORK")
	require.NoError(t, repo.Create(context.Background(), alert))

	// Two readers take the same version.
	copyA, err := repo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	copyB, err := repo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)

	copyA.OccurrenceCount = 4
	require.NoError(t, repo.UpdateVersioned(context.Background(), copyA))
	assert.Equal(t, int64(2), copyA.Version)

	copyB.OccurrenceCount = 5
	err = repo.UpdateVersioned(context.Background(), copyB)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := repo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.OccurrenceCount)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	repo := NewMemoryAlertRepository()
	alert := sampleAlert("NETWORK")
	require.NoError(t, repo.Create(context.Background(), alert))

	first, err := repo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	first.OccurrenceCount = 99
	first.MemberTicketIDs[0] = "mutated"

	second, err := repo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, second.OccurrenceCount)
	assert.Equal(t, "t1", second.MemberTicketIDs[0])
}

func TestFindOpenByKeyIgnoresClosedAlerts(t *testing.T) {
	repo := NewMemoryAlertRepository()
	alert := sampleAlert("NETWORK")
	require.NoError(t, repo.Create(context.Background(), alert))

	stored, err := repo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	stored.Status = domain.AlertStatusResolved
	require.NoError(t, repo.UpdateVersioned(context.Background(), stored))

	open, err := repo.FindOpenByKey(context.Background(), alert.Key)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestSnapshotReaderFiltersByWindowStart(t *testing.T) {
	now := time.Now()
	reader := NewMemoryTicketSnapshotReader([]domain.Ticket{
		{ID: "old", CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{ID: "recent", CreatedAt: now.Add(-time.Hour)},
	})

	tickets, err := reader.ListCreatedSince(context.Background(), now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "recent", tickets[0].ID)
}
