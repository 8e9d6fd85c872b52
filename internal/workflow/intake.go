package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/analysis"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/notify"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/repository"
)

// Intake step names, in execution order.
const (
	StepFetchTicket      = "fetch-ticket"
	StepUpdateStatus     = "update-ticket-status"
	StepAIProcessing     = "ai-processing"
	StepAssignModerator  = "assign-moderator"
	StepSendNotification = "send-email-notification"
)

// ErrMsgTicketNotFound is reported when the triggering ticket does not exist.
const ErrMsgTicketNotFound = "Ticket not found"

// Result is the terminal report of an activation.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Skipped is set when a duplicate trigger found the ticket already claimed.
	Skipped bool `json:"skipped,omitempty"`
}

// TicketStore is the subset of ticket persistence the intake workflow uses.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, id string, update repository.TicketUpdate) error
}

// IntakeDependencies bundles collaborators of the intake workflow.
type IntakeDependencies struct {
	Engine   *Engine
	Tickets  TicketStore
	Resolver *AssigneeResolver
	Analyzer analysis.Analyzer
	Notifier notify.Notifier
	Claims   ClaimStore
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// IntakeWorkflow moves a newly created ticket through triage and assignment.
type IntakeWorkflow struct {
	engine   *Engine
	tickets  TicketStore
	resolver *AssigneeResolver
	analyzer analysis.Analyzer
	notifier notify.Notifier
	claims   ClaimStore
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewIntakeWorkflow builds the workflow. Claims may be nil to disable de-duplication.
func NewIntakeWorkflow(deps IntakeDependencies) *IntakeWorkflow {
	w := &IntakeWorkflow{
		engine:   deps.Engine,
		tickets:  deps.Tickets,
		resolver: deps.Resolver,
		analyzer: deps.Analyzer,
		notifier: deps.Notifier,
		claims:   deps.Claims,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
	if w.analyzer == nil {
		w.analyzer = analysis.NopAnalyzer{}
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Run executes one activation for a ticket/created event. It never panics or
// returns an error; every failure is folded into the Result.
func (w *IntakeWorkflow) Run(ctx context.Context, event events.Event) (result Result) {
	activationID := event.ID
	if activationID == "" {
		activationID = uuid.NewString()
	}
	logger := w.logger.With(zap.String("activation_id", activationID))

	var catcher panics.Catcher
	catcher.Try(func() {
		result = w.run(ctx, activationID, event, logger)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		logger.Error("activation panicked", zap.String("panic", recovered.String()))
		result = Result{Success: false, Error: fmt.Sprintf("panic: %v", recovered.Value)}
	}

	switch {
	case result.Skipped:
		w.metrics.RecordActivation("skipped")
	case result.Success:
		w.metrics.RecordActivation("success")
	default:
		w.metrics.RecordActivation("failed")
		logger.Error("intake activation failed", zap.String("error", result.Error))
	}
	return result
}

func (w *IntakeWorkflow) run(ctx context.Context, activationID string, event events.Event, logger *zap.Logger) Result {
	if event.Name != events.EventTicketCreated {
		return Result{Error: fmt.Sprintf("unexpected event %q", event.Name)}
	}
	ticketID, ok := TicketIDFromEvent(event)
	if !ok {
		return Result{Error: "event has no ticketId"}
	}
	logger = logger.With(zap.String("ticket_id", ticketID))

	if w.claims != nil {
		var claimed bool
		err := w.engine.Retry(ctx, "claim ticket", func(ctx context.Context) error {
			var claimErr error
			claimed, claimErr = w.claims.Claim(ctx, ticketID, activationID)
			return claimErr
		})
		if err != nil {
			return Result{Error: fmt.Sprintf("claim ticket: %v", err)}
		}
		if !claimed {
			logger.Info("ticket already claimed by another activation")
			return Result{Success: true, Skipped: true}
		}
	}

	completed := false
	defer func() {
		if !completed {
			w.releaseClaim(ctx, ticketID, activationID, logger)
		}
	}()

	if err := w.execute(ctx, w.engine.Activate(activationID), ticketID, logger); err != nil {
		return Result{Error: reportMessage(err)}
	}
	completed = true
	logger.Info("intake activation completed")
	return Result{Success: true}
}

// releaseClaim lets a later delivery retry a failed activation.
func (w *IntakeWorkflow) releaseClaim(ctx context.Context, ticketID, activationID string, logger *zap.Logger) {
	if w.claims == nil {
		return
	}
	if err := w.claims.Release(context.WithoutCancel(ctx), ticketID, activationID); err != nil {
		logger.Warn("release claim failed", zap.Error(err))
	}
}

func (w *IntakeWorkflow) execute(ctx context.Context, act *Activation, ticketID string, logger *zap.Logger) error {
	ticket, err := RunStep(ctx, act, StepFetchTicket, func(ctx context.Context) (domain.Ticket, error) {
		return w.fetchTicket(ctx, ticketID)
	})
	if err != nil {
		return err
	}

	_, err = RunStep(ctx, act, StepUpdateStatus, func(ctx context.Context) (bool, error) {
		todo := domain.TicketStatusTodo
		if err := w.tickets.Update(ctx, ticket.ID, repository.TicketUpdate{Status: &todo}); err != nil {
			return false, fmt.Errorf("set status %s: %w", todo, err)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	skills, err := RunStep(ctx, act, StepAIProcessing, func(ctx context.Context) ([]string, error) {
		return w.triage(ctx, &ticket, logger)
	})
	if err != nil {
		return err
	}

	assignee, err := RunStep(ctx, act, StepAssignModerator, func(ctx context.Context) (*Assignee, error) {
		return w.assign(ctx, ticket.ID, skills)
	})
	if err != nil {
		return err
	}

	// Retries of this step only resend through channels that have not delivered yet.
	notifyCtx := notify.WithDeliveryKey(ctx, act.stepKey(StepSendNotification))
	_, err = RunStep(notifyCtx, act, StepSendNotification, func(ctx context.Context) (bool, error) {
		return w.notifyAssignee(ctx, ticket.ID, assignee)
	})
	var notifyErr *notificationError
	if errors.As(err, &notifyErr) {
		logger.Warn("assignment notification not delivered", zap.Error(err))
		return nil
	}
	return err
}

func (w *IntakeWorkflow) fetchTicket(ctx context.Context, ticketID string) (domain.Ticket, error) {
	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && ticket == nil) {
		return domain.Ticket{}, NonRetriable(ErrMsgTicketNotFound)
	}
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("load ticket: %w", err)
	}
	return *ticket, nil
}

// triage runs analysis and persists its result. The returned skills are empty
// when analysis produced nothing.
func (w *IntakeWorkflow) triage(ctx context.Context, ticket *domain.Ticket, logger *zap.Logger) ([]string, error) {
	outcome, err := w.analyzer.Analyze(ctx, ticket)
	if err != nil {
		return nil, fmt.Errorf("analyze ticket: %w", err)
	}
	res, ok := outcome.Get()
	if !ok {
		logger.Info("analysis produced no result")
		return []string{}, nil
	}

	skills := res.RelatedSkills
	if skills == nil {
		skills = []string{}
	}
	priority := domain.NormalizePriority(res.Priority)
	notes := res.HelpfulNotes
	status := domain.TicketStatusInProgress
	update := repository.TicketUpdate{
		Status:        &status,
		Priority:      &priority,
		HelpfulNotes:  &notes,
		RelatedSkills: skills,
		SetSkills:     true,
	}
	if err := w.tickets.Update(ctx, ticket.ID, update); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	logger.Info("ticket triaged",
		zap.String("priority", string(priority)),
		zap.Strings("related_skills", skills))
	return skills, nil
}

func (w *IntakeWorkflow) assign(ctx context.Context, ticketID string, skills []string) (*Assignee, error) {
	assignee, err := w.resolver.Resolve(ctx, skills)
	if err != nil {
		return nil, err
	}
	update := repository.TicketUpdate{SetAssignee: true}
	if assignee != nil {
		update.AssignedTo = &assignee.ID
	}
	if err := w.tickets.Update(ctx, ticketID, update); err != nil {
		return nil, fmt.Errorf("store assignee: %w", err)
	}
	return assignee, nil
}

func (w *IntakeWorkflow) notifyAssignee(ctx context.Context, ticketID string, assignee *Assignee) (bool, error) {
	if assignee == nil || w.notifier == nil {
		return false, nil
	}
	current, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("reload ticket: %w", err)
	}
	body := notify.TicketAssignedBody(current.Title)
	if err := w.notifier.Send(ctx, assignee.Email, notify.TicketAssignedSubject, body); err != nil {
		return false, &notificationError{err: err}
	}
	return true, nil
}

// TicketIDFromEvent extracts data.ticketId from a ticket/created event whose
// payload is either typed or decoded from JSON.
func TicketIDFromEvent(event events.Event) (string, bool) {
	var id string
	switch data := event.Data.(type) {
	case events.TicketCreatedData:
		id = data.TicketID
	case *events.TicketCreatedData:
		if data != nil {
			id = data.TicketID
		}
	case map[string]any:
		id, _ = data["ticketId"].(string)
	case map[string]string:
		id = data["ticketId"]
	}
	return id, id != ""
}
