package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type Board struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// maxSlugBase bounds the name-derived part of a slug.
const maxSlugBase = 48

// NewBoard creates a Board owned by ownerID. The slug is derived from the name
// and suffixed with a short random token so that equal names never collide.
func NewBoard(ownerID uuid.UUID, name string) (*Board, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("board: owner ID is required: %w", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("board: name is required: %w", ErrInvalidInput)
	}

	id := uuid.New()
	now := time.Now().UTC()
	return &Board{
		ID:        id,
		Slug:      Slugify(name) + "-" + strings.ReplaceAll(id.String(), "-", "")[:8],
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Rename changes the display name. Only the owner may rename a board.
func (b *Board) Rename(actor uuid.UUID, name string) error {
	if actor != b.OwnerID {
		return fmt.Errorf("board: only the owner can rename: %w", ErrForbidden)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("board: name is required: %w", ErrInvalidInput)
	}
	b.Name = name
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Slugify lowercases s and collapses every run of non-alphanumeric characters
// into a single hyphen. An input with no usable characters yields "board".
func Slugify(s string) string {
	var sb strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingHyphen = false
			sb.WriteRune(r)
			if sb.Len() >= maxSlugBase {
				break
			}
			continue
		}
		pendingHyphen = true
	}
	if sb.Len() == 0 {
		return "board"
	}
	return sb.String()
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	GetBySlug(ctx context.Context, slug string) (*Board, error)
	Update(ctx context.Context, b *Board) error
	// ListForUser returns boards owned by userID plus boards where userID holds
	// an accepted membership.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Board, error)
	// ListAll returns every board, most recently updated first.
	ListAll(ctx context.Context) ([]*Board, error)
	// Count returns the number of boards updated at or after since. A zero
	// since counts every board.
	Count(ctx context.Context, since time.Time) (int, error)
}
