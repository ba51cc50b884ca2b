package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/alert-engine/internal/analysis"
	"github.com/spec-kit/alert-engine/internal/config"
	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/internal/events"
	"github.com/spec-kit/alert-engine/internal/observability"
	"github.com/spec-kit/alert-engine/internal/repository"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

// ErrRunInProgress signals that another instance holds the reconciliation
// run lock. Treated as a success-no-op by callers.
var ErrRunInProgress = errors.New("analysis run already in progress")

// RunLock serializes reconciliation passes across service instances.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NoopRunLock always grants the lock; used in tests and single-instance
// dev mode where the worker's in-process flag already serializes runs.
type NoopRunLock struct{}

func (NoopRunLock) Acquire(ctx context.Context) (bool, error) { return true, nil }
func (NoopRunLock) Release(ctx context.Context) error         { return nil }

// RunSummary reports what one reconciliation pass did.
type RunSummary struct {
	TicketsScanned int
	Candidates     int
	Created        int
	Updated        int
}

// AnalysisService executes one reconciliation pass: snapshot, aggregate,
// classify, extract, reconcile, persist.
type AnalysisService struct {
	snapshots  repository.TicketSnapshotReader
	alerts     repository.AlertRepository
	aggregator *analysis.Aggregator
	reconciler *Reconciler
	runLock    RunLock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.AnalysisConfig
	now        func() time.Time
}

// AnalysisDependencies bundles collaborators for the analysis service.
type AnalysisDependencies struct {
	Snapshots  repository.TicketSnapshotReader
	Alerts     repository.AlertRepository
	RunLock    RunLock
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAnalysisService constructs the service.
func NewAnalysisService(cfg config.AnalysisConfig, deps AnalysisDependencies) *AnalysisService {
	classifier := analysis.NewSeverityClassifier(cfg.MinOccurrences)
	extractor := analysis.NewSignalExtractor(cfg.KeywordTopN)
	runLock := deps.RunLock
	if runLock == nil {
		runLock = NoopRunLock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		snapshots:  deps.Snapshots,
		alerts:     deps.Alerts,
		aggregator: analysis.NewAggregator(cfg.MinOccurrences),
		reconciler: NewReconciler(classifier, extractor),
		runLock:    runLock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunOnce executes a full reconciliation pass. A failed snapshot read
// aborts the run before any write (fail-closed); the next scheduled tick
// retries. Returns ErrRunInProgress when another instance holds the lock.
func (s *AnalysisService) RunOnce(ctx context.Context) (RunSummary, error) {
	acquired, err := s.runLock.Acquire(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	if !acquired {
		s.metrics.RecordRunRejected()
		return RunSummary{}, ErrRunInProgress
	}
	defer func() {
		if err := s.runLock.Release(ctx); err != nil {
			s.logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	s.metrics.RecordRunStarted()
	windowStart := s.now().Add(-s.cfg.Window())

	tickets, err := s.snapshots.ListCreatedSince(ctx, windowStart)
	if err != nil {
		s.metrics.RecordRunFailed()
		s.logger.Error("ticket snapshot unavailable; run aborted", zap.Error(err))
		return RunSummary{}, errorutil.NewSnapshotUnavailable(err)
	}

	candidates := s.aggregator.Aggregate(tickets)
	existing, err := s.alerts.ListOpen(ctx)
	if err != nil {
		s.metrics.RecordRunFailed()
		return RunSummary{}, err
	}

	ticketsByID := make(map[string]domain.Ticket, len(tickets))
	for _, ticket := range tickets {
		ticketsByID[ticket.ID] = ticket
	}

	result := s.reconciler.Reconcile(candidates, existing, ticketsByID)
	summary := RunSummary{TicketsScanned: len(tickets), Candidates: len(candidates)}

	for i := range result.ToCreate {
		alert := result.ToCreate[i]
		if err := s.alerts.Create(ctx, &alert); err != nil {
			s.metrics.RecordRunFailed()
			return summary, err
		}
		summary.Created++
		s.publish(ctx, events.Event{
			Type:    events.EventAlertCreated,
			AlertID: alert.ID,
			Payload: events.AlertCreatedPayload{
				GroupType:       alert.Key.Type,
				GroupKey:        alert.Key.Value,
				Severity:        alert.Severity,
				OccurrenceCount: alert.OccurrenceCount,
				AffectedUsers:   alert.AffectedUsers,
			},
		})
	}

	for i := range result.ToUpdate {
		updated, err := s.applyStatsUpdate(ctx, result.ToUpdate[i])
		if err != nil {
			s.metrics.RecordRunFailed()
			return summary, err
		}
		if updated {
			summary.Updated++
		}
	}

	s.metrics.RecordRunCompleted(summary.Created, summary.Updated)
	s.logger.Info("analysis run completed",
		zap.Int("tickets", summary.TicketsScanned),
		zap.Int("candidates", summary.Candidates),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated))
	return summary, nil
}

// applyStatsUpdate writes a stats refresh, retrying once after a version
// conflict with a concurrent lifecycle action. The re-read keeps the
// agent's status and acknowledgement fields, only the statistics from
// this pass are reapplied. An alert closed mid-pass is skipped.
func (s *AnalysisService) applyStatsUpdate(ctx context.Context, alert domain.RecurringAlert) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		err := s.alerts.UpdateVersioned(ctx, &alert)
		if err == nil {
			s.publish(ctx, events.Event{
				Type:    events.EventAlertStatsUpdated,
				AlertID: alert.ID,
				Payload: events.AlertStatsUpdatedPayload{
					OccurrenceCount: alert.OccurrenceCount,
					AffectedUsers:   alert.AffectedUsers,
					NewSeverity:     alert.Severity,
				},
			})
			return true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return false, err
		}

		fresh, readErr := s.alerts.GetByID(ctx, alert.ID)
		if readErr != nil {
			return false, readErr
		}
		if !fresh.Status.IsOpen() {
			return false, nil
		}
		fresh.OccurrenceCount = alert.OccurrenceCount
		fresh.AffectedUsers = alert.AffectedUsers
		fresh.FirstOccurrence = alert.FirstOccurrence
		fresh.LastOccurrence = alert.LastOccurrence
		fresh.MemberTicketIDs = alert.MemberTicketIDs
		fresh.Keywords = alert.Keywords
		fresh.SuggestedAction = alert.SuggestedAction
		fresh.Severity = alert.Severity
		alert = *fresh
	}
	return false, repository.ErrVersionConflict
}

func (s *AnalysisService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	_ = s.dispatcher.Publish(ctx, event)
}
