// Package memory holds in-process repositories used when no Postgres DSN is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/repository"
)

// ErrDuplicateEmail mirrors the users.email unique constraint.
var ErrDuplicateEmail = errors.New("memory: duplicate email")

// clock hands out strictly increasing timestamps so insertion order is stable.
type clock struct {
	last time.Time
}

func (c *clock) next() time.Time {
	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// UserRepository is a repository.UserRepository kept in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users []domain.User
	clock clock
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.clock.next()
	user.UpdatedAt = user.CreatedAt
	r.users = append(r.users, cloneUser(*user))
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.findOne(func(u *domain.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findOne(func(u *domain.User) bool { return u.Email == email })
}

func (r *UserRepository) List(context.Context) ([]domain.User, error) {
	return r.filter(func(*domain.User) bool { return true }), nil
}

func (r *UserRepository) UpdateRoleSkills(_ context.Context, email string, role domain.UserRole, skills []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].Email != email {
			continue
		}
		if skills == nil {
			skills = []string{}
		}
		r.users[i].Role = role
		r.users[i].Skills = append([]string(nil), skills...)
		r.users[i].UpdatedAt = r.clock.next()
		return nil
	}
	return pgx.ErrNoRows
}

func (r *UserRepository) ListByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	return r.filter(func(u *domain.User) bool { return u.Role == role }), nil
}

func (r *UserRepository) FindOneByRole(_ context.Context, role domain.UserRole) (*domain.User, error) {
	return r.findOne(func(u *domain.User) bool { return u.Role == role })
}

func (r *UserRepository) findOne(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.users {
		if match(&r.users[i]) {
			u := cloneUser(r.users[i])
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *UserRepository) filter(match func(*domain.User) bool) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.User{}
	for i := range r.users {
		if match(&r.users[i]) {
			out = append(out, cloneUser(r.users[i]))
		}
	}
	return out
}

func cloneUser(u domain.User) domain.User {
	u.Skills = append([]string{}, u.Skills...)
	return u
}

// TicketRepository is a repository.TicketRepository kept in memory.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	clock   clock
}

// NewTicketRepository creates an empty repository.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]*domain.Ticket)}
}

var _ repository.TicketRepository = (*TicketRepository)(nil)

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusCreated
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.clock.next()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := cloneTicket(*ticket)
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneTicket(*t)
	return &out, nil
}

// Update applies a partial update. Status only moves forward.
func (r *TicketRepository) Update(_ context.Context, id string, u repository.TicketUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if u.IsEmpty() {
		return nil
	}
	if u.Status != nil && domain.CanAdvance(t.Status, *u.Status) {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		p := *u.Priority
		t.Priority = &p
	}
	if u.HelpfulNotes != nil {
		n := *u.HelpfulNotes
		t.HelpfulNotes = &n
	}
	if u.SetSkills {
		t.RelatedSkills = append([]string{}, u.RelatedSkills...)
	}
	if u.SetAssignee {
		t.AssignedTo = nil
		if u.AssignedTo != nil {
			a := *u.AssignedTo
			t.AssignedTo = &a
		}
	}
	t.UpdatedAt = r.clock.next()
	return nil
}

// List returns matching tickets newest first.
func (r *TicketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if filter.CreatedBy != nil && (t.CreatedBy == nil || *t.CreatedBy != *filter.CreatedBy) {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		out = append(out, cloneTicket(*t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []domain.Ticket{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TicketRepository) Stats(context.Context) (repository.TicketStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := repository.TicketStats{PerAssignee: map[string]int64{}}
	for _, t := range r.tickets {
		stats.Total++
		if t.AssignedTo == nil {
			stats.Unassigned++
			continue
		}
		stats.Assigned++
		stats.PerAssignee[*t.AssignedTo]++
	}
	return stats, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.RelatedSkills != nil {
		t.RelatedSkills = append([]string{}, t.RelatedSkills...)
	}
	if t.Priority != nil {
		p := *t.Priority
		t.Priority = &p
	}
	if t.HelpfulNotes != nil {
		n := *t.HelpfulNotes
		t.HelpfulNotes = &n
	}
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		t.AssignedTo = &a
	}
	if t.CreatedBy != nil {
		c := *t.CreatedBy
		t.CreatedBy = &c
	}
	return t
}
