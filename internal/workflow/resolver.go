package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk/internal/domain"
)

// SkillMatcher decides whether a user's skills cover any wanted skill.
type SkillMatcher func(candidate []string, wanted []string) bool

// SkillMatches reports whether some candidate skill contains some wanted skill,
// ignoring case and surrounding blanks. Exact equality is the degenerate case.
// Blank wanted entries are ignored, so an empty wanted list matches nothing.
func SkillMatches(candidate []string, wanted []string) bool {
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		for _, c := range candidate {
			if strings.Contains(strings.ToLower(strings.TrimSpace(c)), w) {
				return true
			}
		}
	}
	return false
}

// Directory lists users by role in a stable natural order. FindOneByRole
// returns pgx.ErrNoRows (or a nil user) when nobody has the role.
type Directory interface {
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
	FindOneByRole(ctx context.Context, role domain.UserRole) (*domain.User, error)
}

// Assignee is the moderator or admin chosen to own a ticket.
type Assignee struct {
	ID    string
	Email string
	Role  domain.UserRole
}

// AssigneeResolver applies the assignment chain: a moderator with a matching
// skill, else any admin, else nobody.
type AssigneeResolver struct {
	directory Directory
	matches   SkillMatcher
}

// NewAssigneeResolver builds a resolver. A nil matcher means SkillMatches.
func NewAssigneeResolver(directory Directory, matcher SkillMatcher) *AssigneeResolver {
	if matcher == nil {
		matcher = SkillMatches
	}
	return &AssigneeResolver{directory: directory, matches: matcher}
}

// Resolve picks the assignee for a ticket needing skills. A nil Assignee with
// a nil error means nobody is available.
func (r *AssigneeResolver) Resolve(ctx context.Context, skills []string) (*Assignee, error) {
	moderator, err := r.skilledModerator(ctx, skills)
	if err != nil {
		return nil, err
	}
	if moderator != nil {
		return moderator, nil
	}
	return r.anyAdmin(ctx)
}

func (r *AssigneeResolver) skilledModerator(ctx context.Context, skills []string) (*Assignee, error) {
	if len(skills) == 0 {
		return nil, nil
	}
	moderators, err := r.directory.ListByRole(ctx, domain.UserRoleModerator)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	for i := range moderators {
		if r.matches(moderators[i].Skills, skills) {
			return toAssignee(&moderators[i]), nil
		}
	}
	return nil, nil
}

func (r *AssigneeResolver) anyAdmin(ctx context.Context) (*Assignee, error) {
	admin, err := r.directory.FindOneByRole(ctx, domain.UserRoleAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if admin == nil {
		return nil, nil
	}
	return toAssignee(admin), nil
}

func toAssignee(u *domain.User) *Assignee {
	return &Assignee{ID: u.ID, Email: u.Email, Role: u.Role}
}
