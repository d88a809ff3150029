package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// CanEdit reports whether the role may mutate board objects.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// CanReinvite reports whether an existing membership in this status may be
// moved back to pending by a new invitation. The returned error names the
// conflict when it may not.
func (s InvitationStatus) CanReinvite() error {
	switch s {
	case InvitationAccepted:
		return ErrAlreadyMember
	case InvitationPending:
		return ErrAlreadyInvited
	case InvitationDeclined:
		return nil
	default:
		return fmt.Errorf("member: unknown status %q: %w", s, ErrConflict)
	}
}

type BoardMember struct {
	ID        uuid.UUID        `json:"id"`
	BoardID   uuid.UUID        `json:"board_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Role      Role             `json:"role"`
	Status    InvitationStatus `json:"status"`
	InvitedAt time.Time        `json:"invited_at"`
	InvitedBy *uuid.UUID       `json:"invited_by,omitempty"`
	Message   *string          `json:"message,omitempty"`
}

// Reinvite moves a declined membership back to pending, replacing the inviter
// and message. Pending and accepted memberships are left untouched.
func (m *BoardMember) Reinvite(inviter uuid.UUID, message *string) error {
	if err := m.Status.CanReinvite(); err != nil {
		return err
	}
	m.Status = InvitationPending
	m.InvitedBy = &inviter
	m.Message = message
	m.InvitedAt = time.Now().UTC()
	return nil
}

// NewInvitation creates a pending editor membership for invitee.
func NewInvitation(boardID, invitee, inviter uuid.UUID, message *string) *BoardMember {
	return &BoardMember{
		ID:        uuid.New(),
		BoardID:   boardID,
		UserID:    invitee,
		Role:      RoleEditor,
		Status:    InvitationPending,
		InvitedAt: time.Now().UTC(),
		InvitedBy: &inviter,
		Message:   message,
	}
}

// BoardAccess resolves the effective role of userID on board. Owners always
// have RoleOwner; other users need an accepted membership.
func BoardAccess(board *Board, membership *BoardMember, userID uuid.UUID) (Role, bool) {
	if board.OwnerID == userID {
		return RoleOwner, true
	}
	if membership == nil || membership.UserID != userID || membership.Status != InvitationAccepted {
		return "", false
	}
	return membership.Role, true
}

// ResolveAccess loads the board and the caller's effective role. It returns
// ErrNotFound for a missing board and ErrForbidden when the caller is neither
// the owner nor an accepted member.
func ResolveAccess(ctx context.Context, boards BoardRepository, members MemberRepository, boardID, userID uuid.UUID) (*Board, Role, error) {
	board, err := boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, "", fmt.Errorf("domain.ResolveAccess: %w", err)
	}
	if board.OwnerID == userID {
		return board, RoleOwner, nil
	}

	membership, err := members.Get(ctx, boardID, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", fmt.Errorf("domain.ResolveAccess: %w", err)
	}
	role, ok := BoardAccess(board, membership, userID)
	if !ok {
		return board, "", fmt.Errorf("domain.ResolveAccess: %w", ErrForbidden)
	}
	return board, role, nil
}

type MemberRepository interface {
	Create(ctx context.Context, m *BoardMember) error
	Get(ctx context.Context, boardID, userID uuid.UUID) (*BoardMember, error)
	Update(ctx context.Context, m *BoardMember) error
	// SetStatus upserts the membership of userID on boardID with the given
	// status. A missing row is inserted with RoleEditor.
	SetStatus(ctx context.Context, boardID, userID uuid.UUID, status InvitationStatus) (*BoardMember, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*BoardMember, error)
	ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*BoardMember, error)
	// ListAll returns every membership row regardless of status.
	ListAll(ctx context.Context) ([]*BoardMember, error)
}
