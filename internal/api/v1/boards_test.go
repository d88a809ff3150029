package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/orim/internal/api/v1"
	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/domain"
)

// ---------------------------------------------------------------------------
// POST /boards
// ---------------------------------------------------------------------------

func TestCreateBoard(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		uid := uuid.New()
		var created *domain.Board

		_, api := humatest.New(t)
		store := &mockDataStore{
			boards: &mockBoardRepo{
				createFunc: func(_ context.Context, b *domain.Board) error {
					created = b
					return nil
				},
			},
		}
		v1.RegisterBoardRoutes(api, store, nil)

		resp := api.PostCtx(userCtx(uid), "/boards", map[string]any{"name": "Sprint Planning"})

		require.Equal(t, http.StatusCreated, resp.Code)
		require.NotNil(t, created)
		assert.Equal(t, uid, created.OwnerID)
		assert.True(t, strings.HasPrefix(created.Slug, "sprint-planning-"), created.Slug)

		var got domain.Board
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Sprint Planning", got.Name)
	})

	t.Run("blank_name", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, &mockDataStore{boards: &mockBoardRepo{}}, nil)

		resp := api.PostCtx(userCtx(uuid.New()), "/boards", map[string]any{"name": "   "})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("slug_conflict", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			boards: &mockBoardRepo{
				createFunc: func(_ context.Context, _ *domain.Board) error {
					return domain.ErrConflict
				},
			},
		}
		v1.RegisterBoardRoutes(api, store, nil)

		resp := api.PostCtx(userCtx(uuid.New()), "/boards", map[string]any{"name": "Dup"})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, &mockDataStore{boards: &mockBoardRepo{}}, nil)

		resp := api.PostCtx(context.Background(), "/boards", map[string]any{"name": "x"})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /boards
// ---------------------------------------------------------------------------

func TestListBoards(t *testing.T) {
	t.Parallel()

	t.Run("empty_is_array", func(t *testing.T) {
		t.Parallel()

		uid := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{
			boards: &mockBoardRepo{
				listForUserFunc: func(_ context.Context, userID uuid.UUID) ([]*domain.Board, error) {
					assert.Equal(t, uid, userID)
					return nil, nil
				},
			},
		}
		v1.RegisterBoardRoutes(api, store, nil)

		resp := api.GetCtx(userCtx(uid), "/boards")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, "[]", resp.Body.String())
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			boards: &mockBoardRepo{
				listForUserFunc: func(_ context.Context, _ uuid.UUID) ([]*domain.Board, error) {
					return nil, errors.New("db down")
				},
			},
		}
		v1.RegisterBoardRoutes(api, store, nil)

		resp := api.GetCtx(userCtx(uuid.New()), "/boards")

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /boards/by-slug/{slug}
// ---------------------------------------------------------------------------

func TestGetBoardBySlug(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	member := uuid.New()
	invited := uuid.New()
	board := newBoard(owner)

	tests := []struct {
		name   string
		caller uuid.UUID
		slug   string
		want   int
	}{
		{"owner", owner, board.Slug, http.StatusOK},
		{"accepted_member", member, board.Slug, http.StatusOK},
		{"pending_invitee", invited, board.Slug, http.StatusForbidden},
		{"stranger", uuid.New(), board.Slug, http.StatusForbidden},
		{"unknown_slug", owner, "nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			store := &mockDataStore{}
			withBoard(store, board,
				membership(board, member, domain.RoleViewer, domain.InvitationAccepted),
				membership(board, invited, domain.RoleEditor, domain.InvitationPending),
			)
			store.boards.getBySlugFunc = func(_ context.Context, slug string) (*domain.Board, error) {
				if slug != board.Slug {
					return nil, domain.ErrNotFound
				}
				return board, nil
			}
			v1.RegisterBoardRoutes(api, store, nil)

			resp := api.GetCtx(userCtx(tt.caller), "/boards/by-slug/"+tt.slug)

			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
		})
	}
}

// ---------------------------------------------------------------------------
// PATCH /boards/{boardID}/rename
// ---------------------------------------------------------------------------

func TestRenameBoard(t *testing.T) {
	t.Parallel()

	t.Run("owner_renames_and_broadcasts", func(t *testing.T) {
		t.Parallel()

		owner := uuid.New()
		board := newBoard(owner)
		events := &mockBroadcaster{}

		var saved *domain.Board
		_, api := humatest.New(t)
		store := &mockDataStore{}
		withBoard(store, board)
		store.boards.updateFunc = func(_ context.Context, b *domain.Board) error {
			saved = b
			return nil
		}
		v1.RegisterBoardRoutes(api, store, events)

		resp := api.PatchCtx(userCtx(owner), "/boards/"+board.ID.String()+"/rename", map[string]any{"name": "  Q3 Roadmap "})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		require.NotNil(t, saved)
		assert.Equal(t, "Q3 Roadmap", saved.Name)
		assert.Equal(t, board.Slug, saved.Slug, "rename keeps the slug")
		assert.Equal(t, []ws.BoardEvent{ws.RenameEvent("Q3 Roadmap")}, events.published())
	})

	t.Run("broker_failure_does_not_fail_request", func(t *testing.T) {
		t.Parallel()

		owner := uuid.New()
		board := newBoard(owner)

		_, api := humatest.New(t)
		store := &mockDataStore{}
		withBoard(store, board)
		store.boards.updateFunc = func(_ context.Context, _ *domain.Board) error { return nil }
		v1.RegisterBoardRoutes(api, store, &mockBroadcaster{err: errors.New("redis gone")})

		resp := api.PatchCtx(userCtx(owner), "/boards/"+board.ID.String()+"/rename", map[string]any{"name": "New"})

		assert.Equal(t, http.StatusOK, resp.Code)
	})

	tests := []struct {
		name   string
		caller func(owner uuid.UUID) uuid.UUID
		board  func(b *domain.Board) uuid.UUID
		body   string
		want   int
	}{
		{
			name:   "non_owner",
			caller: func(uuid.UUID) uuid.UUID { return uuid.New() },
			board:  func(b *domain.Board) uuid.UUID { return b.ID },
			body:   "New",
			want:   http.StatusForbidden,
		},
		{
			name:   "blank_name",
			caller: func(owner uuid.UUID) uuid.UUID { return owner },
			board:  func(b *domain.Board) uuid.UUID { return b.ID },
			body:   "   ",
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing_board",
			caller: func(owner uuid.UUID) uuid.UUID { return owner },
			board:  func(*domain.Board) uuid.UUID { return uuid.New() },
			body:   "New",
			want:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			owner := uuid.New()
			board := newBoard(owner)
			events := &mockBroadcaster{}

			_, api := humatest.New(t)
			store := &mockDataStore{}
			withBoard(store, board)
			v1.RegisterBoardRoutes(api, store, events)

			resp := api.PatchCtx(userCtx(tt.caller(owner)), "/boards/"+tt.board(board).String()+"/rename", map[string]any{"name": tt.body})

			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
			assert.Empty(t, events.published())
		})
	}
}
