package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// TicketService handles ticket submission and role-scoped reads.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewTicketService creates the service.
func NewTicketService(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{tickets: tickets, dispatcher: dispatcher, logger: logger}
}

// CreateTicket stores a CREATED ticket and publishes ticket/created, which
// starts the intake workflow.
func (s *TicketService) CreateTicket(ctx context.Context, requester *domain.User, title, description string) (*domain.Ticket, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusCreated,
		CreatedBy:   &requester.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Publish(ctx, events.TicketCreated(ticket.ID)); err != nil {
			s.logger.Error("publish ticket/created failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return ticket, nil
}

// ListTickets returns what the viewer may see: their own tickets for users,
// assigned tickets for moderators, everything for admins.
func (s *TicketService) ListTickets(ctx context.Context, viewer *domain.User, limit, offset int) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Limit: limit, Offset: offset}
	switch viewer.Role {
	case domain.UserRoleAdmin:
	case domain.UserRoleModerator:
		filter.AssignedTo = &viewer.ID
	default:
		filter.CreatedBy = &viewer.ID
	}
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket loads a ticket the viewer may see. Invisible tickets are reported
// as not found.
func (s *TicketService) GetTicket(ctx context.Context, viewer *domain.User, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	if !CanView(viewer, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, nil
}

// CanView reports whether viewer may read ticket.
func CanView(viewer *domain.User, ticket *domain.Ticket) bool {
	if viewer == nil || ticket == nil {
		return false
	}
	switch viewer.Role {
	case domain.UserRoleAdmin:
		return true
	case domain.UserRoleModerator:
		if ticket.AssignedTo != nil && *ticket.AssignedTo == viewer.ID {
			return true
		}
	}
	return ticket.CreatedBy != nil && *ticket.CreatedBy == viewer.ID
}
