package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk/internal/domain"
)

// TicketUpdate is a partial update. Nil fields are left untouched.
type TicketUpdate struct {
	// Status only moves forward: it is applied when the stored status ranks earlier.
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	HelpfulNotes  *string
	RelatedSkills []string
	SetSkills     bool
	AssignedTo    *string
	SetAssignee   bool
}

// IsEmpty reports whether the update would change nothing.
func (u TicketUpdate) IsEmpty() bool {
	return u.Status == nil && u.Priority == nil && u.HelpfulNotes == nil && !u.SetSkills && !u.SetAssignee
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Limit      int
	Offset     int
}

// TicketStats summarizes tickets for the admin dashboard.
type TicketStats struct {
	Total       int64
	Assigned    int64
	Unassigned  int64
	PerAssignee map[string]int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, id string, update TicketUpdate) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context) (TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id::text, title, description, status, priority, helpful_notes, related_skills,
               assigned_to::text, created_by::text, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, created_by)
        VALUES ($1,$2,$3,$4)
        RETURNING id::text, created_at, updated_at`
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusCreated
	}
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, id string, update TicketUpdate) error {
	if _, err := uuid.Parse(id); err != nil {
		return pgx.ErrNoRows
	}
	sets := []string{}
	args := []any{}

	if update.Status != nil {
		args = append(args, *update.Status)
		next := len(args)
		args = append(args, statusStrings(domain.StatusesBefore(*update.Status)))
		sets = append(sets, fmt.Sprintf("status = CASE WHEN status = ANY($%d::text[]) THEN $%d ELSE status END", len(args), next))
	}
	if update.Priority != nil {
		args = append(args, *update.Priority)
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	if update.HelpfulNotes != nil {
		args = append(args, *update.HelpfulNotes)
		sets = append(sets, fmt.Sprintf("helpful_notes=$%d", len(args)))
	}
	if update.SetSkills {
		skills := update.RelatedSkills
		if skills == nil {
			skills = []string{}
		}
		args = append(args, skills)
		sets = append(sets, fmt.Sprintf("related_skills=$%d", len(args)))
	}
	if update.SetAssignee {
		args = append(args, update.AssignedTo)
		sets = append(sets, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Stats(ctx context.Context) (TicketStats, error) {
	stats := TicketStats{PerAssignee: map[string]int64{}}
	const totals = `
        SELECT COUNT(*), COUNT(assigned_to), COUNT(*) - COUNT(assigned_to)
        FROM tickets`
	if err := r.pool.QueryRow(ctx, totals).Scan(&stats.Total, &stats.Assigned, &stats.Unassigned); err != nil {
		return stats, err
	}

	const perAssignee = `
        SELECT assigned_to::text, COUNT(*)
        FROM tickets WHERE assigned_to IS NOT NULL GROUP BY assigned_to`
	rows, err := r.pool.Query(ctx, perAssignee)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			assignee string
			count    int64
		)
		if err := rows.Scan(&assignee, &count); err != nil {
			return stats, err
		}
		stats.PerAssignee[assignee] = count
	}
	return stats, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.HelpfulNotes,
		&ticket.RelatedSkills,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
