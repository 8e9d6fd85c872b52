package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/deskflow/helpdesk/internal/events"
)

type capturingNotifier struct {
	mu        sync.Mutex
	addresses []string
	subjects  []string
	err       error
}

func (n *capturingNotifier) Send(_ context.Context, address, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addresses = append(n.addresses, address)
	n.subjects = append(n.subjects, subject)
	return n.err
}

func TestSignupSendsWelcome(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &capturingNotifier{}
	NewNotificationService(dispatcher, notifier, nil).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(),
		events.NewEvent(events.EventUserSignup, events.UserSignupData{Email: "new@example.com"})))
	require.NoError(t, dispatcher.Publish(context.Background(),
		events.NewEvent(events.EventUserSignup, map[string]any{"email": "decoded@example.com"})))

	assert.Equal(t, []string{"new@example.com", "decoded@example.com"}, notifier.addresses)
	assert.Equal(t, welcomeSubject, notifier.subjects[0])
}

func TestWelcomeFailureDoesNotFailPublish(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &capturingNotifier{err: errors.New("smtp down")}
	NewNotificationService(dispatcher, notifier, zap.New(core)).RegisterHandlers()

	err := dispatcher.Publish(context.Background(),
		events.NewEvent(events.EventUserSignup, events.UserSignupData{Email: "new@example.com"}))

	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("welcome notification failed").Len())
}
