package dto

import (
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
)

// SignupRequest payload for self-registration.
type SignupRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Skills   []string        `json:"skills"`
	Role     domain.UserRole `json:"role"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest payload for admin account changes.
type UpdateUserRequest struct {
	Email  string          `json:"email"`
	Role   domain.UserRole `json:"role"`
	Skills []string        `json:"skills"`
}

// UserResponse is a user without credentials.
type UserResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	Skills    []string        `json:"skills"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuthResponse standard response for signup and login.
type AuthResponse struct {
	User        UserResponse `json:"user"`
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

// ModeratorLoadResponse is one moderator row on the dashboard.
type ModeratorLoadResponse struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Skills          []string `json:"skills"`
	AssignedTickets int64    `json:"assigned_tickets"`
}

// DashboardStatsResponse aggregates for the admin dashboard.
type DashboardStatsResponse struct {
	TotalUsers        int                     `json:"total_users"`
	TotalModerators   int                     `json:"total_moderators"`
	TotalAdmins       int                     `json:"total_admins"`
	TotalTickets      int64                   `json:"total_tickets"`
	AssignedTickets   int64                   `json:"assigned_tickets"`
	UnassignedTickets int64                   `json:"unassigned_tickets"`
	Moderators        []ModeratorLoadResponse `json:"moderators"`
	RecentTickets     []TicketResponse        `json:"recent_tickets"`
}

// NewUserResponse strips credentials from a user.
func NewUserResponse(u *domain.User) UserResponse {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserResponse{ID: u.ID, Email: u.Email, Role: u.Role, Skills: skills, CreatedAt: u.CreatedAt}
}
