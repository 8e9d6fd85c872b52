package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/workflow"
)

// ErrStopped is returned for events delivered after Stop.
var ErrStopped = errors.New("intake worker stopped")

// Runner executes one workflow activation.
type Runner interface {
	Run(ctx context.Context, event events.Event) workflow.Result
}

// IntakeWorker runs the intake workflow for every ticket/created event on a
// bounded pool. Delivery blocks while the pool is saturated.
type IntakeWorker struct {
	runner  Runner
	logger  *zap.Logger
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	pool   *pool.Pool

	mu      sync.Mutex
	stopped bool
	// pending counts deliveries that passed the stopped check but may still
	// be waiting for a pool slot.
	pending sync.WaitGroup
}

// NewIntakeWorker creates a worker with at most workers concurrent activations.
// Each activation is bounded by timeout when it is positive.
func NewIntakeWorker(runner Runner, workers int, timeout time.Duration, logger *zap.Logger) *IntakeWorker {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &IntakeWorker{
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		base:    base,
		cancel:  cancel,
		pool:    pool.New().WithMaxGoroutines(workers),
	}
}

// Register subscribes the worker to ticket/created.
func (w *IntakeWorker) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, w.Handle)
}

// Handle schedules an activation. The caller's context only governs delivery;
// the activation itself outlives the request that published the event.
func (w *IntakeWorker) Handle(_ context.Context, event events.Event) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.pending.Add(1)
	w.mu.Unlock()
	defer w.pending.Done()

	w.pool.Go(func() {
		w.run(event)
	})
	return nil
}

func (w *IntakeWorker) run(event events.Event) {
	if w.base.Err() != nil {
		w.logger.Warn("intake activation dropped at shutdown", zap.String("event_id", event.ID))
		return
	}
	ctx := w.base
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	started := time.Now()
	res := w.runner.Run(ctx, event)
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Bool("success", res.Success),
		zap.Bool("skipped", res.Skipped),
		zap.Duration("duration", time.Since(started)),
	}
	if !res.Success {
		w.logger.Warn("intake activation reported failure", append(fields, zap.String("error", res.Error))...)
		return
	}
	w.logger.Info("intake activation finished", fields...)
}

// Stop refuses new events and waits for in-flight activations. When ctx ends
// first, running activations are cancelled and Stop still waits for them.
func (w *IntakeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.pending.Wait()
		w.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}
