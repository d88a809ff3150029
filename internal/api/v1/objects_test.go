package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/orim/internal/api/v1"
	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/boardsync"
	"github.com/gosuda/orim/internal/domain"
)

// memObjects returns an object repository backed by a map that applies the
// same last-writer-wins rule as the database.
func memObjects(seed ...domain.BoardObject) (*mockObjectRepo, func() map[string]domain.BoardObject) {
	var mu sync.Mutex
	rows := make(map[string]domain.BoardObject, len(seed))
	for _, o := range seed {
		rows[o.ID] = o.Clone()
	}

	repo := &mockObjectRepo{
		upsertFunc: func(_ context.Context, o *domain.BoardObject) (bool, error) {
			if _, ok := boardsync.ParseTimestamp(o.UpdatedAt); !ok {
				return false, domain.ErrInvalidInput
			}
			mu.Lock()
			defer mu.Unlock()
			if cur, ok := rows[o.ID]; ok && !boardsync.Newer(o.UpdatedAt, cur.UpdatedAt) {
				return false, nil
			}
			rows[o.ID] = o.Clone()
			return true, nil
		},
		getFunc: func(_ context.Context, _ uuid.UUID, id string) (*domain.BoardObject, error) {
			mu.Lock()
			defer mu.Unlock()
			o, ok := rows[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			cp := o.Clone()
			return &cp, nil
		},
		listByBoardFunc: func(_ context.Context, _ uuid.UUID) ([]domain.BoardObject, error) {
			mu.Lock()
			defer mu.Unlock()
			out := make([]domain.BoardObject, 0, len(rows))
			for _, o := range rows {
				out = append(out, o.Clone())
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
			return out, nil
		},
		deleteFunc: func(_ context.Context, _ uuid.UUID, id string) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := rows[id]; !ok {
				return domain.ErrNotFound
			}
			delete(rows, id)
			return nil
		},
	}

	snapshot := func() map[string]domain.BoardObject {
		mu.Lock()
		defer mu.Unlock()
		out := make(map[string]domain.BoardObject, len(rows))
		for k, v := range rows {
			out[k] = v.Clone()
		}
		return out
	}
	return repo, snapshot
}

type objectHarness struct {
	api      humatest.TestAPI
	board    *domain.Board
	owner    uuid.UUID
	editor   uuid.UUID
	viewer   uuid.UUID
	events   *mockBroadcaster
	snapshot func() map[string]domain.BoardObject
}

func newObjectHarness(t *testing.T, seed ...domain.BoardObject) *objectHarness {
	t.Helper()

	h := &objectHarness{
		owner:  uuid.New(),
		editor: uuid.New(),
		viewer: uuid.New(),
		events: &mockBroadcaster{},
	}
	h.board = newBoard(h.owner)
	for i := range seed {
		seed[i].BoardID = h.board.ID
	}

	store := &mockDataStore{}
	withBoard(store, h.board,
		membership(h.board, h.editor, domain.RoleEditor, domain.InvitationAccepted),
		membership(h.board, h.viewer, domain.RoleViewer, domain.InvitationAccepted),
	)
	store.objects, h.snapshot = memObjects(seed...)

	_, h.api = humatest.New(t)
	v1.RegisterObjectRoutes(h.api, store, h.events)
	return h
}

func (h *objectHarness) path(suffix string) string {
	return "/boards/" + h.board.ID.String() + "/objects" + suffix
}

func shape(id string, typ domain.ObjectType, x, y, w, hgt float64, ts string) domain.BoardObject {
	return domain.BoardObject{ID: id, Type: typ, X: x, Y: y, Width: w, Height: hgt, UpdatedAt: ts, Data: map[string]any{}}
}

// ---------------------------------------------------------------------------
// GET /boards/{boardID}/objects
// ---------------------------------------------------------------------------

func TestListObjects(t *testing.T) {
	t.Parallel()

	seed := func() []domain.BoardObject {
		top := shape("a-top", domain.ObjectRectangle, 10, 10, 50, 50, "2024-01-01T00:00:01Z")
		top.ZIndex = 5
		return []domain.BoardObject{
			top,
			shape("b-bottom", domain.ObjectCircle, 20, 20, 50, 50, "2024-01-01T00:00:01Z"),
			shape("far", domain.ObjectStickyNote, 5000, 5000, 150, 150, "2024-01-01T00:00:01Z"),
		}
	}

	ids := func(t *testing.T, body []byte) []string {
		t.Helper()
		var got []domain.BoardObject
		require.NoError(t, json.Unmarshal(body, &got))
		out := make([]string, 0, len(got))
		for _, o := range got {
			out = append(out, o.ID)
		}
		return out
	}

	t.Run("all_sorted_by_z", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, seed()...)

		resp := h.api.GetCtx(userCtx(h.viewer), h.path(""))

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"b-bottom", "far", "a-top"}, ids(t, resp.Body.Bytes()))
	})

	t.Run("viewport_culls", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, seed()...)

		resp := h.api.GetCtx(userCtx(h.owner), h.path("?x=0&y=0&width=800&height=600"))

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"b-bottom", "a-top"}, ids(t, resp.Body.Bytes()))
	})

	t.Run("stranger_forbidden", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, seed()...)

		resp := h.api.GetCtx(userCtx(uuid.New()), h.path(""))

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// PUT /boards/{boardID}/objects/{objectID}
// ---------------------------------------------------------------------------

type upsertResponse struct {
	Object  domain.BoardObject `json:"object"`
	Applied bool               `json:"applied"`
}

func TestUpsertObject(t *testing.T) {
	t.Parallel()

	t.Run("create_applies_defaults", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t)

		resp := h.api.PutCtx(userCtx(h.editor), h.path("/n1"), map[string]any{
			"type":       "sticky_note",
			"x":          40,
			"y":          60,
			"updated_at": "2024-01-01T00:00:01Z",
		})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var out upsertResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.True(t, out.Applied)
		assert.InDelta(t, 150.0, out.Object.Width, 0)
		assert.InDelta(t, 150.0, out.Object.Height, 0)
		assert.Equal(t, "#EAB308", out.Object.Data["fill"])
		require.NotNil(t, out.Object.CreatedBy)
		assert.Equal(t, h.editor, *out.Object.CreatedBy)

		stored := h.snapshot()["n1"]
		assert.Equal(t, h.board.ID, stored.BoardID)

		evs := h.events.published()
		require.Len(t, evs, 1)
		assert.Equal(t, ws.EventCreate, evs[0].Type)
		assert.Equal(t, "n1", evs[0].Object.ID)
	})

	t.Run("update_keeps_creator", func(t *testing.T) {
		t.Parallel()
		creator := uuid.New()
		o := shape("o1", domain.ObjectRectangle, 0, 0, 120, 80, "2024-01-01T00:00:01Z")
		o.CreatedBy = &creator
		h := newObjectHarness(t, o)

		resp := h.api.PutCtx(userCtx(h.owner), h.path("/o1"), map[string]any{
			"type":       "rectangle",
			"x":          100,
			"width":      120,
			"height":     80,
			"updated_at": "2024-01-01T00:00:02Z",
		})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		stored := h.snapshot()["o1"]
		assert.InDelta(t, 100.0, stored.X, 0)
		require.NotNil(t, stored.CreatedBy)
		assert.Equal(t, creator, *stored.CreatedBy)

		evs := h.events.published()
		require.Len(t, evs, 1)
		assert.Equal(t, ws.EventUpdate, evs[0].Type)
	})

	t.Run("stale_write_returns_stored_copy", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, shape("o1", domain.ObjectRectangle, 7, 0, 120, 80, "2024-01-01T00:00:05Z"))

		resp := h.api.PutCtx(userCtx(h.editor), h.path("/o1"), map[string]any{
			"type":       "rectangle",
			"x":          999,
			"updated_at": "2024-01-01T00:00:04Z",
		})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var out upsertResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.False(t, out.Applied)
		assert.InDelta(t, 7.0, out.Object.X, 0)
		assert.Empty(t, h.events.published())
	})

	t.Run("missing_timestamp_is_stamped", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t)

		resp := h.api.PutCtx(userCtx(h.owner), h.path("/t1"), map[string]any{"type": "text"})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		stored := h.snapshot()["t1"]
		_, ok := boardsync.ParseTimestamp(stored.UpdatedAt)
		assert.True(t, ok, stored.UpdatedAt)
	})

	tests := []struct {
		name   string
		caller func(h *objectHarness) uuid.UUID
		body   map[string]any
		want   int
	}{
		{
			name:   "viewer_read_only",
			caller: func(h *objectHarness) uuid.UUID { return h.viewer },
			body:   map[string]any{"type": "rectangle", "updated_at": "2024-01-01T00:00:01Z"},
			want:   http.StatusForbidden,
		},
		{
			name:   "unknown_type",
			caller: func(h *objectHarness) uuid.UUID { return h.owner },
			body:   map[string]any{"type": "hexagon", "updated_at": "2024-01-01T00:00:01Z"},
			want:   http.StatusUnprocessableEntity,
		},
		{
			name:   "malformed_timestamp",
			caller: func(h *objectHarness) uuid.UUID { return h.owner },
			body:   map[string]any{"type": "rectangle", "updated_at": "yesterday"},
			want:   http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newObjectHarness(t)

			resp := h.api.PutCtx(userCtx(tt.caller(h)), h.path("/x1"), tt.body)

			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
			assert.Empty(t, h.snapshot())
			assert.Empty(t, h.events.published())
		})
	}
}

// ---------------------------------------------------------------------------
// DELETE /boards/{boardID}/objects/{objectID}
// ---------------------------------------------------------------------------

func TestDeleteObject(t *testing.T) {
	t.Parallel()

	t.Run("editor_deletes_and_broadcasts", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, shape("o1", domain.ObjectLine, 0, 0, 150, 0, "2024-01-01T00:00:01Z"))

		resp := h.api.DeleteCtx(userCtx(h.editor), h.path("/o1"))

		require.Equal(t, http.StatusNoContent, resp.Code)
		assert.Empty(t, h.snapshot())
		assert.Equal(t, []ws.BoardEvent{ws.DeleteEvent("o1")}, h.events.published())
	})

	t.Run("missing_object", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t)

		resp := h.api.DeleteCtx(userCtx(h.owner), h.path("/nope"))

		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Empty(t, h.events.published())
	})

	t.Run("viewer_forbidden", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, shape("o1", domain.ObjectLine, 0, 0, 150, 0, "2024-01-01T00:00:01Z"))

		resp := h.api.DeleteCtx(userCtx(h.viewer), h.path("/o1"))

		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.Len(t, h.snapshot(), 1)
	})
}

// ---------------------------------------------------------------------------
// POST /boards/{boardID}/objects/sync
// ---------------------------------------------------------------------------

type syncResponse struct {
	Objects []domain.BoardObject `json:"objects"`
	Pushed  []string             `json:"pushed"`
}

func syncSeed() []domain.BoardObject {
	return []domain.BoardObject{
		shape("same", domain.ObjectRectangle, 0, 0, 10, 10, "2024-01-01T00:00:05Z"),
		shape("server-newer", domain.ObjectRectangle, 1, 0, 10, 10, "2024-01-01T00:00:09Z"),
		shape("client-newer", domain.ObjectRectangle, 2, 0, 10, 10, "2024-01-01T00:00:01Z"),
		shape("server-only", domain.ObjectCircle, 3, 0, 10, 10, "2024-01-01T00:00:01Z"),
	}
}

func syncBody() map[string]any {
	return map[string]any{"objects": []map[string]any{
		{"id": "same", "type": "rectangle", "x": 0, "width": 10, "height": 10, "updated_at": "2024-01-01T00:00:05Z"},
		{"id": "server-newer", "type": "rectangle", "x": 100, "width": 10, "height": 10, "updated_at": "2024-01-01T00:00:02Z"},
		{"id": "client-newer", "type": "rectangle", "x": 200, "width": 10, "height": 10, "updated_at": "2024-01-01T00:00:08Z"},
		{"id": "client-only", "type": "text", "x": 300, "updated_at": "2024-01-01T00:00:03Z"},
	}}
}

func TestSyncObjects(t *testing.T) {
	t.Parallel()

	t.Run("editor_pulls_and_pushes", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, syncSeed()...)

		resp := h.api.PostCtx(userCtx(h.editor), h.path("/sync"), syncBody())

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var out syncResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))

		pulled := make([]string, 0, len(out.Objects))
		for _, o := range out.Objects {
			pulled = append(pulled, o.ID)
		}
		assert.ElementsMatch(t, []string{"server-newer", "server-only"}, pulled)
		assert.ElementsMatch(t, []string{"client-newer", "client-only"}, out.Pushed)

		rows := h.snapshot()
		assert.InDelta(t, 200.0, rows["client-newer"].X, 0)
		assert.InDelta(t, 1.0, rows["server-newer"].X, 0)
		require.Contains(t, rows, "client-only")
		assert.InDelta(t, 200.0, rows["client-only"].Width, 0, "new objects get type defaults")

		types := make(map[string]ws.EventType)
		for _, ev := range h.events.published() {
			types[ev.Object.ID] = ev.Type
		}
		assert.Equal(t, map[string]ws.EventType{"client-newer": ws.EventUpdate, "client-only": ws.EventCreate}, types)
	})

	t.Run("viewer_only_pulls", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, syncSeed()...)

		resp := h.api.PostCtx(userCtx(h.viewer), h.path("/sync"), syncBody())

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var out syncResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.Len(t, out.Objects, 2)
		assert.Empty(t, out.Pushed)
		assert.NotContains(t, h.snapshot(), "client-only")
		assert.Empty(t, h.events.published())
	})

	t.Run("empty_client_pulls_everything", func(t *testing.T) {
		t.Parallel()
		h := newObjectHarness(t, syncSeed()...)

		resp := h.api.PostCtx(userCtx(h.owner), h.path("/sync"), map[string]any{"objects": []any{}})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var out syncResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.Len(t, out.Objects, 4)
		assert.NotNil(t, out.Pushed)
	})
}
