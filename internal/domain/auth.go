package domain

import "time"

// Token represents issued JWT metadata.
type Token struct {
	SubjectID string
	Role      UserRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
