package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event names.
type EventType string

const (
	EventTicketCreated EventType = "ticket/created"
	EventUserSignup    EventType = "user/signup"
)

// Event is a named message carried by the dispatcher.
type Event struct {
	ID        string      `json:"id"`
	Name      EventType   `json:"name"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// TicketCreatedData is the payload of ticket/created.
type TicketCreatedData struct {
	TicketID string `json:"ticketId"`
}

// UserSignupData is the payload of user/signup.
type UserSignupData struct {
	Email string `json:"email"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(name EventType, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// TicketCreated builds a ticket/created event.
func TicketCreated(ticketID string) Event {
	return NewEvent(EventTicketCreated, TicketCreatedData{TicketID: ticketID})
}
