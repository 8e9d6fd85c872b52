package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk/internal/analysis"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/repository"
)

type fakeTickets struct {
	mu        sync.Mutex
	tickets   map[string]*domain.Ticket
	getErrs   []error
	updateErr error
	updates   []repository.TicketUpdate
}

func newFakeTickets(tickets ...domain.Ticket) *fakeTickets {
	f := &fakeTickets{tickets: make(map[string]*domain.Ticket)}
	for i := range tickets {
		t := tickets[i]
		f.tickets[t.ID] = &t
	}
	return f
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) Update(_ context.Context, id string, u repository.TicketUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	f.updates = append(f.updates, u)
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
		if u.AssignedTo == nil {
			t.AssignedTo = nil
		} else {
			a := *u.AssignedTo
			t.AssignedTo = &a
		}
	}
	return nil
}

func (f *fakeTickets) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tickets[id]
}

type fakeDirectory struct {
	users   []domain.User
	listErr error
}

func (d *fakeDirectory) ListByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []domain.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindOneByRole(ctx context.Context, role domain.UserRole) (*domain.User, error) {
	users, err := d.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &users[0], nil
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	outcome analysis.Outcome
	errs    []error
	calls   int
}

func (a *fakeAnalyzer) Analyze(context.Context, *domain.Ticket) (analysis.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return analysis.None(), err
		}
	}
	return a.outcome, nil
}

type sentMessage struct {
	address string
	subject string
	body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, address, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{address: address, subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// failingStepLog fails every Put.
type failingStepLog struct {
	*MemoryStepLog
}

func (failingStepLog) Put(context.Context, string, []byte) error {
	return errors.New("step log unavailable")
}

// flakyStepLog fails the first getFailures reads.
type flakyStepLog struct {
	*MemoryStepLog
	mu          sync.Mutex
	getFailures int
	gets        int
}

func (l *flakyStepLog) Get(ctx context.Context, key string) ([]byte, bool, error) {
	l.mu.Lock()
	l.gets++
	fail := l.gets <= l.getFailures
	l.mu.Unlock()
	if fail {
		return nil, false, errors.New("connection reset")
	}
	return l.MemoryStepLog.Get(ctx, key)
}

// flakyClaimStore fails the first claimFailures claims.
type flakyClaimStore struct {
	*MemoryClaimStore
	mu            sync.Mutex
	claimFailures int
	claims        int
}

func (s *flakyClaimStore) Claim(ctx context.Context, ticketID, activationID string) (bool, error) {
	s.mu.Lock()
	s.claims++
	fail := s.claims <= s.claimFailures
	s.mu.Unlock()
	if fail {
		return false, errors.New("connection reset")
	}
	return s.MemoryClaimStore.Claim(ctx, ticketID, activationID)
}
