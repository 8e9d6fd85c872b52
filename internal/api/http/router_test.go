package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/api/http/handlers"
	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/config"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/repository/memory"
	"github.com/deskflow/helpdesk/internal/service"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app       *fiber.App
	users     *memory.UserRepository
	tickets   *memory.TicketRepository
	published []events.Event
	metrics   *observability.Metrics
}

func newTestServer(t *testing.T, redisErr error) *testServer {
	t.Helper()
	logger := zap.NewNop()
	srv := &testServer{
		app:     fiber.New(),
		users:   memory.NewUserRepository(),
		tickets: memory.NewTicketRepository(),
		metrics: observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		srv.published = append(srv.published, e)
		return nil
	})

	authSvc := service.NewAuthService(config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}, srv.users, dispatcher, logger)
	RegisterMiddlewares(srv.app, logger, srv.metrics, time.Second)
	RegisterRoutes(srv.app, RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk", "test", map[string]handlers.Pinger{
			"postgres": pingerFunc(func(context.Context) error { return nil }),
			"redis":    pingerFunc(func(context.Context) error { return redisErr }),
		}),
		Auth:           handlers.NewAuthHandler(authSvc),
		Admin:          handlers.NewAdminHandler(service.NewAdminService(srv.users, srv.tickets)),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(srv.tickets, dispatcher, logger)),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), srv.users),
	})
	return srv
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func (s *testServer) signup(t *testing.T, email string, role domain.UserRole) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": email, "password": "pw", "role": role, "skills": []string{"docker"},
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["token"].(string)
}

func (s *testServer) promote(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, s.users.UpdateRoleSkills(context.Background(), email, domain.UserRoleAdmin, nil))
	status, body := s.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": "pw"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "/admin/dashboard", body["redirect_url"])
	return body["token"].(string)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestSignupLoginLogout(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "user@example.com", "")

	status, body := srv.do(t, fiber.MethodPost, "/api/auth/signup", "", map[string]any{"email": "user@example.com", "password": "pw"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = srv.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]any{"email": "user@example.com", "password": "pw"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "/user/dashboard", body["redirect_url"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")

	status, _ = srv.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]any{"email": "user@example.com", "password": "bad"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = srv.do(t, fiber.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = srv.do(t, fiber.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestTicketEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signup(t, "alice@example.com", domain.UserRoleUser)
	bob := srv.signup(t, "bob@example.com", domain.UserRoleUser)

	status, _ := srv.do(t, fiber.MethodPost, "/api/tickets", "", map[string]any{"title": "x", "description": "y"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := srv.do(t, fiber.MethodPost, "/api/tickets", alice, map[string]any{"title": "VPN down", "description": "cannot connect"})
	require.Equal(t, fiber.StatusCreated, status, body)
	created := body["data"].(map[string]any)
	assert.Equal(t, "CREATED", created["status"])
	id := created["id"].(string)

	require.Len(t, srv.published, 1)
	assert.Equal(t, events.TicketCreatedData{TicketID: id}, srv.published[0].Data)

	status, body = srv.do(t, fiber.MethodPost, "/api/tickets", alice, map[string]any{"title": "", "description": "y"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, "/api/tickets", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = srv.do(t, fiber.MethodGet, "/api/tickets", bob, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 0)

	status, _ = srv.do(t, fiber.MethodGet, "/api/tickets/"+id, alice, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, body = srv.do(t, fiber.MethodGet, "/api/tickets/"+id, bob, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	userToken := srv.signup(t, "user@example.com", domain.UserRoleUser)
	srv.signup(t, "mod@example.com", domain.UserRoleModerator)
	srv.signup(t, "root@example.com", domain.UserRoleUser)
	adminToken := srv.promote(t, "root@example.com")

	status, body := srv.do(t, fiber.MethodGet, "/api/auth/users", userToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, "/api/auth/users", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 3)

	status, body = srv.do(t, fiber.MethodPost, "/api/auth/update-user", adminToken, map[string]any{
		"email": "mod@example.com", "role": "moderator", "skills": []string{"kubernetes"},
	})
	require.Equal(t, fiber.StatusOK, status, body)
	updated := body["data"].(map[string]any)
	assert.Equal(t, []any{"kubernetes"}, updated["skills"])

	status, _ = srv.do(t, fiber.MethodPost, "/api/auth/update-user", adminToken, map[string]any{"email": "ghost@example.com", "role": "admin"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = srv.do(t, fiber.MethodGet, "/api/auth/dashboard-stats", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := body["data"].(map[string]any)
	assert.EqualValues(t, 1, stats["total_users"])
	assert.EqualValues(t, 1, stats["total_moderators"])
	assert.EqualValues(t, 1, stats["total_admins"])
	assert.EqualValues(t, 0, stats["total_tickets"])

	status, _ = srv.do(t, fiber.MethodGet, "/api/auth/dashboard-stats", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	status, body := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	degraded := newTestServer(t, errors.New("connection refused"))
	status, body = degraded.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	status, body := srv.do(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	snap := srv.metrics.Snapshot()
	assert.NotEmpty(t, snap.Requests)
	assert.NotEmpty(t, snap.Errors)
}
