// Package notify delivers short messages to a recipient address.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier sends a message to an address.
type Notifier interface {
	Send(ctx context.Context, address, subject, body string) error
}

// TicketAssignedSubject is the subject line of assignment notices.
const TicketAssignedSubject = "Ticket Assigned"

// TicketAssignedBody renders the assignment notice for a ticket title.
func TicketAssignedBody(title string) string {
	return fmt.Sprintf("A new ticket has been assigned to you: %s", title)
}

type deliveryKeyCtx struct{}

// WithDeliveryKey tags ctx with a key identifying one logical delivery. A
// MultiNotifier that sees the same key again skips channels that already
// delivered it.
func WithDeliveryKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, deliveryKeyCtx{}, key)
}

func deliveryKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(deliveryKeyCtx{}).(string)
	return key
}

// partialDeliveryTTL bounds how long a partly failed delivery is remembered.
const partialDeliveryTTL = time.Hour

type partialDelivery struct {
	delivered map[int]bool
	updated   time.Time
}

// MultiNotifier fans a message out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	partial map[string]*partialDelivery
}

// NewMultiNotifier creates a fan-out notifier. A failing notifier does not stop the others.
func NewMultiNotifier(logger *zap.Logger, notifiers ...Notifier) *MultiNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiNotifier{
		notifiers: notifiers,
		logger:    logger,
		now:       time.Now,
		partial:   make(map[string]*partialDelivery),
	}
}

// Send implements Notifier; the returned error joins every failure. When ctx
// carries a delivery key, channels that succeeded on an earlier Send with the
// same key are skipped.
func (m *MultiNotifier) Send(ctx context.Context, address, subject, body string) error {
	key := deliveryKeyFrom(ctx)
	skip := m.delivered(key)

	var (
		errs []error
		sent []int
	)
	for i, n := range m.notifiers {
		if skip[i] {
			continue
		}
		if err := n.Send(ctx, address, subject, body); err != nil {
			m.logger.Warn("notifier failed", zap.String("to", address), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		sent = append(sent, i)
	}
	m.record(key, sent, len(errs) == 0)
	return errors.Join(errs...)
}

func (m *MultiNotifier) delivered(key string) map[int]bool {
	if key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partial[key]
	if !ok {
		return nil
	}
	out := make(map[int]bool, len(p.delivered))
	for i := range p.delivered {
		out[i] = true
	}
	return out
}

func (m *MultiNotifier) record(key string, sent []int, complete bool) {
	if key == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, p := range m.partial {
		if now.Sub(p.updated) >= partialDeliveryTTL {
			delete(m.partial, k)
		}
	}
	if complete {
		delete(m.partial, key)
		return
	}
	p, ok := m.partial[key]
	if !ok {
		p = &partialDelivery{delivered: make(map[int]bool)}
		m.partial[key] = p
	}
	for _, i := range sent {
		p.delivered[i] = true
	}
	p.updated = now
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(_ context.Context, address, subject, body string) error {
	n.logger.Info("notification",
		zap.String("to", address),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
