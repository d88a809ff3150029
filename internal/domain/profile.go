package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile mirrors an identity managed by the external auth provider. Rows are
// refreshed from token claims on every authenticated request; only the
// superuser flag is owned locally.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Superuser   bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type ProfileRepository interface {
	// Upsert inserts or refreshes the identity fields of p and returns the
	// stored row. The superuser flag of an existing row is left alone.
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) error
}
