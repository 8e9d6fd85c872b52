package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/repository/memory"
)

func TestCreateTicketPublishesTrigger(t *testing.T) {
	tickets := memory.NewTicketRepository()
	dispatcher := newRecordingDispatcher()
	svc := NewTicketService(tickets, dispatcher, nil)
	requester := &domain.User{ID: "u1", Role: domain.UserRoleUser}

	ticket, err := svc.CreateTicket(context.Background(), requester, " Printer ", " jammed ")

	require.NoError(t, err)
	assert.Equal(t, "Printer", ticket.Title)
	assert.Equal(t, "jammed", ticket.Description)
	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)
	require.NotNil(t, ticket.CreatedBy)
	assert.Equal(t, "u1", *ticket.CreatedBy)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTicketCreated, dispatcher.published[0].Name)
	assert.Equal(t, events.TicketCreatedData{TicketID: ticket.ID}, dispatcher.published[0].Data)
}

func TestCreateTicketValidation(t *testing.T) {
	svc := NewTicketService(memory.NewTicketRepository(), nil, nil)
	_, err := svc.CreateTicket(context.Background(), &domain.User{ID: "u1"}, "", "desc")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))
}

func TestTicketVisibility(t *testing.T) {
	tickets := memory.NewTicketRepository()
	svc := NewTicketService(tickets, nil, nil)
	ctx := context.Background()

	alice := &domain.User{ID: "alice", Role: domain.UserRoleUser}
	bob := &domain.User{ID: "bob", Role: domain.UserRoleUser}
	mod := &domain.User{ID: "mod", Role: domain.UserRoleModerator}
	admin := &domain.User{ID: "admin", Role: domain.UserRoleAdmin}

	t1, err := svc.CreateTicket(ctx, alice, "one", "first")
	require.NoError(t, err)
	_, err = svc.CreateTicket(ctx, bob, "two", "second")
	require.NoError(t, err)
	modID := mod.ID
	require.NoError(t, tickets.Update(ctx, t1.ID, repositoryAssign(&modID)))

	list, err := svc.ListTickets(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListTickets(ctx, mod, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, t1.ID, list[0].ID)

	list, err = svc.ListTickets(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.GetTicket(ctx, bob, t1.ID)
	assert.Equal(t, "NOT_FOUND", errorCode(err))
	got, err := svc.GetTicket(ctx, mod, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)
	_, err = svc.GetTicket(ctx, admin, "missing")
	assert.Equal(t, "NOT_FOUND", errorCode(err))

	empty, err := svc.ListTickets(ctx, &domain.User{ID: "nobody", Role: domain.UserRoleUser}, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
