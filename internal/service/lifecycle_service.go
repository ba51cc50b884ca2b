package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/internal/events"
	"github.com/spec-kit/alert-engine/internal/observability"
	"github.com/spec-kit/alert-engine/internal/repository"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

// AlertStats aggregates alert counts by status.
type AlertStats struct {
	Total        int64
	Active       int64
	Acknowledged int64
	Resolved     int64
	Dismissed    int64
}

// LifecycleService executes agent actions on alerts: acknowledge, resolve,
// dismiss, plus the read-side queries. Every successful transition appends
// an immutable audit entry.
type LifecycleService struct {
	alerts     repository.AlertRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Alerts     repository.AlertRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		alerts:     deps.Alerts,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// allowedTransitions drives the state machine. Terminal states permit
// nothing, so re-submitting a terminal action surfaces as an explicit
// error instead of silently corrupting history.
var allowedTransitions = map[domain.AlertStatus][]domain.AlertStatus{
	domain.AlertStatusActive:       {domain.AlertStatusAcknowledged, domain.AlertStatusResolved, domain.AlertStatusDismissed},
	domain.AlertStatusAcknowledged: {domain.AlertStatusResolved, domain.AlertStatusDismissed},
	domain.AlertStatusResolved:     {},
	domain.AlertStatusDismissed:    {},
}

func isAllowedTransition(from, to domain.AlertStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Acknowledge marks an ACTIVE alert as being looked at. Notes optional.
func (s *LifecycleService) Acknowledge(ctx context.Context, alertID, actingUserID string, notes *string) (*domain.RecurringAlert, error) {
	alert, err := s.transition(ctx, alertID, domain.AlertStatusAcknowledged, actingUserID, notes,
		func(alert *domain.RecurringAlert, at time.Time) {
			alert.AcknowledgedByUserID = &actingUserID
			alert.AcknowledgedAt = &at
		})
	s.metrics.RecordLifecycleAction("acknowledge", err == nil)
	return alert, err
}

// Resolve closes an alert as fixed. Notes are mandatory: the resolution
// text is the audit record of what was actually done.
func (s *LifecycleService) Resolve(ctx context.Context, alertID, actingUserID, notes string) (*domain.RecurringAlert, error) {
	if strings.TrimSpace(notes) == "" {
		s.metrics.RecordLifecycleAction("resolve", false)
		return nil, errorutil.NewValidationError("notes are required to resolve an alert", nil)
	}
	alert, err := s.transition(ctx, alertID, domain.AlertStatusResolved, actingUserID, &notes,
		func(alert *domain.RecurringAlert, at time.Time) {
			alert.ResolvedByUserID = &actingUserID
			alert.ResolvedAt = &at
			alert.Notes = &notes
		})
	s.metrics.RecordLifecycleAction("resolve", err == nil)
	return alert, err
}

// Dismiss closes an alert as not actionable. Notes optional.
func (s *LifecycleService) Dismiss(ctx context.Context, alertID, actingUserID string, notes *string) (*domain.RecurringAlert, error) {
	alert, err := s.transition(ctx, alertID, domain.AlertStatusDismissed, actingUserID, notes,
		func(alert *domain.RecurringAlert, at time.Time) {
			if notes != nil {
				alert.Notes = notes
			}
		})
	s.metrics.RecordLifecycleAction("dismiss", err == nil)
	return alert, err
}

// transition performs read-validate-mutate-write with one retry after a
// version conflict against the background reconciler. The conflict retry
// re-reads so a stats refresh that landed first is never overwritten.
func (s *LifecycleService) transition(ctx context.Context, alertID string, target domain.AlertStatus, actingUserID string, notes *string, apply func(*domain.RecurringAlert, time.Time)) (*domain.RecurringAlert, error) {
	for attempt := 0; attempt < 2; attempt++ {
		alert, err := s.alerts.GetByID(ctx, alertID)
		if err != nil {
			if errors.Is(err, repository.ErrAlertMissing) {
				return nil, errorutil.NewNotFound("alert", map[string]any{"alert_id": alertID})
			}
			return nil, err
		}

		from := alert.Status
		if !isAllowedTransition(from, target) {
			return nil, errorutil.NewInvalidTransition(string(from), string(target))
		}

		now := time.Now()
		alert.Status = target
		apply(alert, now)

		audit := &domain.AlertAudit{
			AlertID:      alert.ID,
			FromStatus:   from,
			ToStatus:     target,
			ActingUserID: actingUserID,
			Notes:        notes,
		}
		// Status write and audit entry are atomic: a transition that cannot
		// be audited does not happen.
		err = s.alerts.UpdateVersionedWithAudit(ctx, alert, audit)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publishStatusChange(ctx, alert, from, target, actingUserID, notes)
		s.logger.Info("alert transition",
			zap.String("alert_id", alert.ID),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.String("acting_user", actingUserID))
		return alert, nil
	}
	return nil, errorutil.NewConflict("alert was modified concurrently, retry the action", map[string]any{"alert_id": alertID})
}

// ListAlerts returns alerts, optionally filtered by status.
func (s *LifecycleService) ListAlerts(ctx context.Context, status *domain.AlertStatus, limit, offset int) ([]domain.RecurringAlert, error) {
	filter := repository.AlertFilter{Limit: limit, Offset: offset}
	if status != nil {
		filter.Statuses = []domain.AlertStatus{*status}
	}
	return s.alerts.List(ctx, filter)
}

// GetAlert returns one alert with its audit history.
func (s *LifecycleService) GetAlert(ctx context.Context, alertID string) (*domain.RecurringAlert, []domain.AlertAudit, error) {
	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrAlertMissing) {
			return nil, nil, errorutil.NewNotFound("alert", map[string]any{"alert_id": alertID})
		}
		return nil, nil, err
	}
	audit, err := s.alerts.ListAudit(ctx, alertID)
	if err != nil {
		return nil, nil, err
	}
	return alert, audit, nil
}

// Stats returns alert counts by status.
func (s *LifecycleService) Stats(ctx context.Context) (AlertStats, error) {
	counts, err := s.alerts.CountByStatus(ctx)
	if err != nil {
		return AlertStats{}, err
	}
	stats := AlertStats{
		Active:       counts[domain.AlertStatusActive],
		Acknowledged: counts[domain.AlertStatusAcknowledged],
		Resolved:     counts[domain.AlertStatusResolved],
		Dismissed:    counts[domain.AlertStatusDismissed],
	}
	stats.Total = stats.Active + stats.Acknowledged + stats.Resolved + stats.Dismissed
	return stats, nil
}

func (s *LifecycleService) publishStatusChange(ctx context.Context, alert *domain.RecurringAlert, from, to domain.AlertStatus, actingUserID string, notes *string) {
	if s.dispatcher == nil {
		return
	}
	eventType := events.EventAlertAcknowledged
	switch to {
	case domain.AlertStatusResolved:
		eventType = events.EventAlertResolved
	case domain.AlertStatusDismissed:
		eventType = events.EventAlertDismissed
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AlertID:   alert.ID,
		Timestamp: time.Now(),
		Payload: events.AlertStatusChangedPayload{
			OldStatus:    from,
			NewStatus:    to,
			ActingUserID: actingUserID,
			Notes:        notes,
		},
	})
}
