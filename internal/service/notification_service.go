package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/notify"
)

const welcomeSubject = "Welcome to the helpdesk"

// NotificationService reacts to account events with outbound messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, notifier: notifier, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserSignup, n.handleUserSignup)
}

// handleUserSignup sends a welcome message. Delivery failures are logged and
// never fail the signup.
func (n *NotificationService) handleUserSignup(ctx context.Context, event events.Event) error {
	email := signupEmail(event)
	if email == "" || n.notifier == nil {
		return nil
	}
	body := fmt.Sprintf("Your account %s is ready. You can now submit tickets.", email)
	if err := n.notifier.Send(ctx, email, welcomeSubject, body); err != nil {
		n.logger.Warn("welcome notification failed", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	n.logger.Info("UserSignup", zap.String("event_id", event.ID))
	return nil
}

func signupEmail(event events.Event) string {
	switch data := event.Data.(type) {
	case events.UserSignupData:
		return data.Email
	case *events.UserSignupData:
		if data != nil {
			return data.Email
		}
	case map[string]any:
		email, _ := data["email"].(string)
		return email
	}
	return ""
}
