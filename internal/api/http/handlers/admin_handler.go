package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk/internal/api/dto"
	"github.com/deskflow/helpdesk/internal/service"
	apperrors "github.com/deskflow/helpdesk/pkg/util/errorutil"
)

// AdminHandler serves admin-only account and dashboard endpoints.
type AdminHandler struct {
	service *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{service: adminService}
}

// UpdateUser POST /api/auth/update-user.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.service.UpdateUser(c.UserContext(), req.Email, req.Role, req.Skills)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "user updated", "data": dto.NewUserResponse(user)})
}

// ListUsers GET /api/auth/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DashboardStats GET /api/auth/dashboard-stats.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.DashboardStats(c.UserContext())
	if err != nil {
		return err
	}
	resp := dto.DashboardStatsResponse{
		TotalUsers:        stats.TotalUsers,
		TotalModerators:   stats.TotalModerators,
		TotalAdmins:       stats.TotalAdmins,
		TotalTickets:      stats.TotalTickets,
		AssignedTickets:   stats.AssignedTickets,
		UnassignedTickets: stats.UnassignedTickets,
		Moderators:        make([]dto.ModeratorLoadResponse, 0, len(stats.Moderators)),
		RecentTickets:     dto.NewTicketResponses(stats.RecentTickets),
	}
	for _, m := range stats.Moderators {
		resp.Moderators = append(resp.Moderators, dto.ModeratorLoadResponse{
			ID:              m.ID,
			Email:           m.Email,
			Skills:          m.Skills,
			AssignedTickets: m.AssignedTickets,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}
