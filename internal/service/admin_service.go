package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

const recentTicketCount = 10

// ModeratorLoad is a moderator with the number of tickets assigned to them.
type ModeratorLoad struct {
	ID              string
	Email           string
	Skills          []string
	AssignedTickets int64
}

// DashboardStats aggregates users and tickets for the admin dashboard.
type DashboardStats struct {
	TotalUsers        int
	TotalModerators   int
	TotalAdmins       int
	TotalTickets      int64
	AssignedTickets   int64
	UnassignedTickets int64
	Moderators        []ModeratorLoad
	RecentTickets     []domain.Ticket
}

// AdminService exposes account management and dashboard aggregation.
type AdminService struct {
	users   repository.UserRepository
	tickets repository.TicketRepository
}

// NewAdminService creates the service.
func NewAdminService(users repository.UserRepository, tickets repository.TicketRepository) *AdminService {
	return &AdminService{users: users, tickets: tickets}
}

// UpdateUser changes a user's role and skills. An empty role or skill list
// keeps the stored value.
func (s *AdminService) UpdateUser(ctx context.Context, email string, role domain.UserRole, skills []string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email required", nil)
	}
	if role != "" && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
	}
	if err != nil {
		return nil, err
	}

	if role != "" {
		user.Role = role
	}
	if cleaned := CleanSkills(skills); len(cleaned) > 0 {
		user.Skills = cleaned
	}
	if err := s.users.UpdateRoleSkills(ctx, email, user.Role, user.Skills); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// DashboardStats computes per-role and per-moderator totals.
func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	ticketStats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.tickets.List(ctx, repository.TicketFilter{Limit: recentTicketCount})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalTickets:      ticketStats.Total,
		AssignedTickets:   ticketStats.Assigned,
		UnassignedTickets: ticketStats.Unassigned,
		Moderators:        []ModeratorLoad{},
		RecentTickets:     recent,
	}
	if stats.RecentTickets == nil {
		stats.RecentTickets = []domain.Ticket{}
	}
	for _, u := range users {
		switch u.Role {
		case domain.UserRoleUser:
			stats.TotalUsers++
		case domain.UserRoleModerator:
			stats.TotalModerators++
			stats.Moderators = append(stats.Moderators, ModeratorLoad{
				ID:              u.ID,
				Email:           u.Email,
				Skills:          u.Skills,
				AssignedTickets: ticketStats.PerAssignee[u.ID],
			})
		case domain.UserRoleAdmin:
			stats.TotalAdmins++
		}
	}
	return stats, nil
}
