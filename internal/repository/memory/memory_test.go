package memory

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/repository"
)

func TestUserDirectoryOrder(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	for _, u := range []domain.User{
		{Email: "a@example.com", Role: domain.UserRoleModerator},
		{Email: "b@example.com", Role: domain.UserRoleAdmin},
		{Email: "c@example.com", Role: domain.UserRoleModerator},
	} {
		u := u
		require.NoError(t, repo.Create(ctx, &u))
	}
	dup := domain.User{Email: "a@example.com"}
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicateEmail)

	mods, err := repo.ListByRole(ctx, domain.UserRoleModerator)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "a@example.com", mods[0].Email)
	assert.Equal(t, "c@example.com", mods[1].Email)

	admin, err := repo.FindOneByRole(ctx, domain.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", admin.Email)

	_, err = repo.FindOneByRole(ctx, domain.UserRoleUser)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, repo.UpdateRoleSkills(ctx, "ghost@example.com", domain.UserRoleUser, nil), pgx.ErrNoRows)
}

func TestTicketUpdateIsMonotonic(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	ticket := &domain.Ticket{Title: "t", Description: "d"}
	require.NoError(t, repo.Create(ctx, ticket))
	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)

	inProgress := domain.TicketStatusInProgress
	todo := domain.TicketStatusTodo
	require.NoError(t, repo.Update(ctx, ticket.ID, repository.TicketUpdate{Status: &inProgress}))
	require.NoError(t, repo.Update(ctx, ticket.ID, repository.TicketUpdate{Status: &todo}))

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)

	assert.ErrorIs(t, repo.Update(ctx, "missing", repository.TicketUpdate{Status: &todo}), pgx.ErrNoRows)
}

func TestTicketListAndStats(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	owner := "owner"
	mod := "mod"
	var ids []string
	for i := 0; i < 5; i++ {
		tk := &domain.Ticket{Title: "t", Description: "d", CreatedBy: &owner}
		require.NoError(t, repo.Create(ctx, tk))
		ids = append(ids, tk.ID)
	}
	require.NoError(t, repo.Update(ctx, ids[1], repository.TicketUpdate{AssignedTo: &mod, SetAssignee: true}))

	all, err := repo.List(ctx, repository.TicketFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ids[3], all[0].ID)

	assigned, err := repo.List(ctx, repository.TicketFilter{AssignedTo: &mod})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, ids[1], assigned[0].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(1), stats.Assigned)
	assert.Equal(t, int64(4), stats.Unassigned)
	assert.Equal(t, int64(1), stats.PerAssignee[mod])
}
