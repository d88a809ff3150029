package domain_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orim/internal/domain"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Roadmap", "roadmap"},
		{"Q3 Planning / Draft", "q3-planning-draft"},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"snake_case__name", "snake-case-name"},
		{"Ünïcödé", "n-c-d"},
		{"!!!", "board"},
		{"", "board"},
		{strings.Repeat("a", 80), strings.Repeat("a", 48)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, domain.Slugify(tt.in))
		})
	}
}

func TestNewBoard(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	b, err := domain.NewBoard(owner, "  Sprint Retro ")
	require.NoError(t, err)

	assert.Equal(t, "Sprint Retro", b.Name)
	assert.Equal(t, owner, b.OwnerID)
	assert.Regexp(t, regexp.MustCompile(`^sprint-retro-[0-9a-f]{8}$`), b.Slug)
	assert.Equal(t, strings.ReplaceAll(b.ID.String(), "-", "")[:8], b.Slug[len(b.Slug)-8:])
	assert.False(t, b.CreatedAt.IsZero())

	other, err := domain.NewBoard(owner, "Sprint Retro")
	require.NoError(t, err)
	assert.NotEqual(t, b.Slug, other.Slug)
}

func TestNewBoard_Invalid(t *testing.T) {
	t.Parallel()

	_, err := domain.NewBoard(uuid.Nil, "Board")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = domain.NewBoard(uuid.New(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBoard_Rename(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	b, err := domain.NewBoard(owner, "Old")
	require.NoError(t, err)
	slug := b.Slug

	require.ErrorIs(t, b.Rename(uuid.New(), "Stolen"), domain.ErrForbidden)
	require.ErrorIs(t, b.Rename(owner, " "), domain.ErrInvalidInput)
	assert.Equal(t, "Old", b.Name)

	require.NoError(t, b.Rename(owner, " New "))
	assert.Equal(t, "New", b.Name)
	assert.Equal(t, slug, b.Slug, "slug is stable across renames")
}

func TestRole_CanEdit(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.RoleOwner.CanEdit())
	assert.True(t, domain.RoleEditor.CanEdit())
	assert.False(t, domain.RoleViewer.CanEdit())
	assert.False(t, domain.Role("").CanEdit())
}

func TestInvitationStatus_CanReinvite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status domain.InvitationStatus
		want   error
	}{
		{domain.InvitationDeclined, nil},
		{domain.InvitationPending, domain.ErrAlreadyInvited},
		{domain.InvitationAccepted, domain.ErrAlreadyMember},
		{"bogus", domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			err := tt.status.CanReinvite()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBoardMember_Reinvite(t *testing.T) {
	t.Parallel()

	board, inviter, invitee := uuid.New(), uuid.New(), uuid.New()
	m := domain.NewInvitation(board, invitee, inviter, nil)
	assert.Equal(t, domain.InvitationPending, m.Status)
	assert.Equal(t, domain.RoleEditor, m.Role)

	require.ErrorIs(t, m.Reinvite(inviter, nil), domain.ErrAlreadyInvited)

	m.Status = domain.InvitationDeclined
	second := uuid.New()
	msg := "come back"
	require.NoError(t, m.Reinvite(second, &msg))
	assert.Equal(t, domain.InvitationPending, m.Status)
	assert.Equal(t, second, *m.InvitedBy)
	assert.Equal(t, "come back", *m.Message)
}

func TestBoardAccess(t *testing.T) {
	t.Parallel()

	owner, member := uuid.New(), uuid.New()
	board := &domain.Board{ID: uuid.New(), OwnerID: owner}
	accepted := &domain.BoardMember{BoardID: board.ID, UserID: member, Role: domain.RoleViewer, Status: domain.InvitationAccepted}
	pending := &domain.BoardMember{BoardID: board.ID, UserID: member, Role: domain.RoleEditor, Status: domain.InvitationPending}

	tests := []struct {
		name       string
		membership *domain.BoardMember
		user       uuid.UUID
		wantRole   domain.Role
		wantOK     bool
	}{
		{"owner_without_membership", nil, owner, domain.RoleOwner, true},
		{"accepted_member", accepted, member, domain.RoleViewer, true},
		{"pending_member", pending, member, "", false},
		{"stranger", nil, uuid.New(), "", false},
		{"membership_of_someone_else", accepted, uuid.New(), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			role, ok := domain.BoardAccess(board, tt.membership, tt.user)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

type boardsStub struct {
	domain.BoardRepository
	board *domain.Board
}

func (s boardsStub) GetByID(_ context.Context, id uuid.UUID) (*domain.Board, error) {
	if s.board == nil || s.board.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.board, nil
}

type membersStub struct {
	domain.MemberRepository
	member *domain.BoardMember
	err    error
}

func (s membersStub) Get(_ context.Context, _, userID uuid.UUID) (*domain.BoardMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.member == nil || s.member.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s.member, nil
}

func TestResolveAccess(t *testing.T) {
	t.Parallel()

	owner, editor := uuid.New(), uuid.New()
	board := &domain.Board{ID: uuid.New(), OwnerID: owner}
	membership := &domain.BoardMember{BoardID: board.ID, UserID: editor, Role: domain.RoleEditor, Status: domain.InvitationAccepted}
	boards := boardsStub{board: board}

	tests := []struct {
		name     string
		members  membersStub
		boardID  uuid.UUID
		user     uuid.UUID
		wantRole domain.Role
		wantErr  error
	}{
		{"owner", membersStub{}, board.ID, owner, domain.RoleOwner, nil},
		{"editor", membersStub{member: membership}, board.ID, editor, domain.RoleEditor, nil},
		{"stranger", membersStub{member: membership}, board.ID, uuid.New(), "", domain.ErrForbidden},
		{"missing_board", membersStub{}, uuid.New(), owner, "", domain.ErrNotFound},
		{"member_lookup_fails", membersStub{err: errors.New("db down")}, board.ID, editor, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, role, err := domain.ResolveAccess(t.Context(), boards, tt.members, tt.boardID, tt.user)
			switch {
			case tt.name == "member_lookup_fails":
				require.Error(t, err)
				assert.NotErrorIs(t, err, domain.ErrForbidden)
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantRole, role)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	note := domain.BoardObject{Type: domain.ObjectStickyNote}
	note.ApplyDefaults()
	assert.Equal(t, 150.0, note.Width)
	assert.Equal(t, 150.0, note.Height)
	assert.Equal(t, "#EAB308", note.Data["fill"])

	sized := domain.BoardObject{Type: domain.ObjectRectangle, Width: 10, Data: map[string]any{"fill": "#000"}}
	sized.ApplyDefaults()
	assert.Equal(t, 10.0, sized.Width)
	assert.Zero(t, sized.Height)
	assert.Equal(t, "#000", sized.Data["fill"])

	conn := domain.BoardObject{Type: domain.ObjectConnector}
	conn.ApplyDefaults()
	assert.Zero(t, conn.Width)
	assert.Equal(t, "transparent", conn.Data["fill"])
}

func TestObjectType_Valid(t *testing.T) {
	t.Parallel()

	for _, typ := range []domain.ObjectType{
		domain.ObjectStickyNote, domain.ObjectRectangle, domain.ObjectCircle, domain.ObjectLine,
		domain.ObjectText, domain.ObjectFrame, domain.ObjectConnector,
	} {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, domain.ObjectType("hexagon").Valid())
	assert.False(t, domain.ObjectType("").Valid())
}

func TestBoardObject_Clone(t *testing.T) {
	t.Parallel()

	by := uuid.New()
	o := domain.BoardObject{ID: "a", Data: map[string]any{"text": "hi"}, CreatedBy: &by}
	c := o.Clone()
	c.Data["text"] = "changed"
	*c.CreatedBy = uuid.New()

	assert.Equal(t, "hi", o.Data["text"])
	assert.Equal(t, by, *o.CreatedBy)
}

func TestSortByZ(t *testing.T) {
	t.Parallel()

	objs := []domain.BoardObject{
		{ID: "c", ZIndex: 1},
		{ID: "b", ZIndex: 0},
		{ID: "a", ZIndex: 1},
	}
	domain.SortByZ(objs)

	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestAgentConfigValues(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.AgentBackendSDK.Valid())
	assert.True(t, domain.AgentBackendDocker.Valid())
	assert.False(t, domain.AgentBackend("lambda").Valid())

	assert.True(t, domain.ValidAgentModel("claude-haiku-4-5"))
	assert.False(t, domain.ValidAgentModel("gpt-4"))
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ada@example.com", domain.NormalizeEmail("  Ada@Example.COM "))
}
