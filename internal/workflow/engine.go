package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/observability"
)

// DefaultMaxRetries is the number of retries a step gets after its first attempt.
const DefaultMaxRetries = 2

// EngineOptions tunes step execution.
type EngineOptions struct {
	// Namespace prefixes every step log key.
	Namespace string
	// MaxRetries bounds retries per step; negative means DefaultMaxRetries.
	MaxRetries int
	// StepTimeout bounds a single attempt; zero disables it.
	StepTimeout time.Duration
	// NewBackOff returns the delay policy between attempts of one step.
	NewBackOff func() backoff.BackOff
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Engine executes memoized, retried steps.
type Engine struct {
	log         StepLog
	namespace   string
	maxRetries  int
	stepTimeout time.Duration
	newBackOff  func() backoff.BackOff
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewEngine builds an engine over a step log.
func NewEngine(log StepLog, opts EngineOptions) *Engine {
	e := &Engine{
		log:         log,
		namespace:   opts.Namespace,
		maxRetries:  opts.MaxRetries,
		stepTimeout: opts.StepTimeout,
		newBackOff:  opts.NewBackOff,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if e.namespace == "" {
		e.namespace = "workflow"
	}
	if e.maxRetries < 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.newBackOff == nil {
		e.newBackOff = ExponentialBackOff(500 * time.Millisecond)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// ExponentialBackOff returns a backoff factory starting at initial. A
// non-positive initial retries without waiting.
func ExponentialBackOff(initial time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		if initial <= 0 {
			return &backoff.ZeroBackOff{}
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		return b
	}
}

// Activation is one execution of a workflow, identified by the triggering event.
type Activation struct {
	ID     string
	engine *Engine
	logger *zap.Logger
}

// Activate starts (or resumes) the activation with the given id.
func (e *Engine) Activate(id string) *Activation {
	return &Activation{
		ID:     id,
		engine: e,
		logger: e.logger.With(zap.String("activation_id", id)),
	}
}

func (a *Activation) stepKey(name string) string {
	return fmt.Sprintf("%s:%s:%s", a.engine.namespace, a.ID, name)
}

// RunStep runs fn as the step name of the activation. A result already in the
// step log is returned without calling fn. Otherwise fn is attempted up to
// 1+MaxRetries times, each attempt under its own timeout; a NonRetriableError
// stops immediately. The successful result is written to the step log.
func RunStep[T any](ctx context.Context, act *Activation, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	e := act.engine
	key := act.stepKey(name)
	logger := act.logger.With(zap.String("step", name))

	var (
		raw   []byte
		found bool
	)
	_, err := e.retry(ctx, func(attemptCtx context.Context) error {
		var getErr error
		raw, found, getErr = e.log.Get(attemptCtx, key)
		return getErr
	}, func(attempt int, err error, wait time.Duration) {
		logger.Warn("step log read failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		e.metrics.RecordStep(name, "failed")
		return zero, fmt.Errorf("step %s: read step log: %w", name, err)
	}
	if found {
		var cached T
		if err := decodeResult(raw, &cached); err == nil {
			e.metrics.RecordStep(name, "cached")
			logger.Debug("step result replayed")
			return cached, nil
		}
		logger.Warn("discarding undecodable step result")
	}

	var out T
	attempts, err := e.retry(ctx, func(attemptCtx context.Context) error {
		v, err := fn(attemptCtx)
		if err == nil {
			out = v
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		e.metrics.RecordStep(name, "retry")
		logger.Warn("step attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		e.metrics.RecordStep(name, "failed")
		logger.Error("step failed",
			zap.Int("attempts", attempts),
			zap.Bool("non_retriable", IsNonRetriable(err)),
			zap.Error(err))
		return zero, fmt.Errorf("step %s: %w", name, err)
	}

	encoded, err := encodeResult(out)
	if err == nil {
		err = e.log.Put(ctx, key, encoded)
	}
	if err != nil {
		// Steps are idempotent; an unrecorded result is re-run on re-entry.
		logger.Warn("step result not recorded", zap.Error(err))
	}
	e.metrics.RecordStep(name, "ok")
	logger.Debug("step completed", zap.Int("attempts", attempts))
	return out, nil
}

func (e *Engine) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.stepTimeout)
}

// Retry runs fn under the engine's retry policy without memoizing anything.
// It is meant for harness calls made outside a step, such as claiming a ticket.
func (e *Engine) Retry(ctx context.Context, what string, fn func(context.Context) error) error {
	_, err := e.retry(ctx, fn, func(attempt int, err error, wait time.Duration) {
		e.logger.Warn(what+" failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	return err
}

// retry attempts fn up to 1+maxRetries times, each attempt under its own
// timeout. A NonRetriableError or a cancelled parent stops immediately.
func (e *Engine) retry(
	ctx context.Context,
	fn func(context.Context) error,
	onRetry func(attempt int, err error, wait time.Duration),
) (int, error) {
	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx, cancel := e.attemptContext(ctx)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if IsNonRetriable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), uint64(e.maxRetries)), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		onRetry(attempt, err, wait)
	})
	return attempt, err
}
