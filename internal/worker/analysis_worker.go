package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/alert-engine/internal/service"
)

// RunFunc executes one reconciliation pass.
type RunFunc func(ctx context.Context) error

// AnalysisWorker triggers reconciliation periodically and on demand. At
// most one pass executes at a time; a trigger arriving while one is in
// flight is coalesced, not queued.
type AnalysisWorker struct {
	run      RunFunc
	interval time.Duration
	logger   *zap.Logger

	trigger  chan struct{}
	inFlight atomic.Bool
	cancel   context.CancelFunc
	done     sync.WaitGroup
	started  atomic.Bool
}

// NewAnalysisWorker builds the worker.
func NewAnalysisWorker(run RunFunc, interval time.Duration, logger *zap.Logger) *AnalysisWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisWorker{
		run:      run,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the background loop. An immediate first pass runs so a
// freshly booted instance does not wait a full interval before flagging
// anything.
func (w *AnalysisWorker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done.Add(1)
	go w.loop(ctx)
}

// Stop terminates the loop and waits for any in-flight pass to finish.
func (w *AnalysisWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.done.Wait()
}

// TriggerNow requests an out-of-cycle pass. It returns false when a pass
// is already executing or already queued; the caller relies on that run
// to cover the same intent.
func (w *AnalysisWorker) TriggerNow() bool {
	if w.inFlight.Load() {
		return false
	}
	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (w *AnalysisWorker) loop(ctx context.Context) {
	defer w.done.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.execute(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.execute(ctx)
		case <-w.trigger:
			w.execute(ctx)
		}
	}
}

func (w *AnalysisWorker) execute(ctx context.Context) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer w.inFlight.Store(false)

	err := w.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrRunInProgress):
		w.logger.Info("analysis pass skipped, another instance is running")
	case errors.Is(err, context.Canceled):
	default:
		w.logger.Error("analysis pass failed, will retry on next tick", zap.Error(err))
	}
}
