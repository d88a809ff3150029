package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/boardsync"
	"github.com/gosuda/orim/internal/domain"
)

// ObjectBody is the client-supplied part of a board object.
type ObjectBody struct {
	ID        string            `json:"id,omitempty" maxLength:"128" doc:"Object ID (sync only; PUT takes it from the path)"`
	Type      domain.ObjectType `json:"type" enum:"sticky_note,rectangle,circle,line,text,frame,connector" doc:"Shape type"`
	X         float64           `json:"x,omitempty"`
	Y         float64           `json:"y,omitempty"`
	Width     float64           `json:"width,omitempty"`
	Height    float64           `json:"height,omitempty"`
	ZIndex    int               `json:"z_index,omitempty"`
	Data      map[string]any    `json:"data,omitempty" doc:"Shape-specific properties"`
	UpdatedAt string            `json:"updated_at,omitempty" doc:"ISO-8601 write timestamp; the server stamps now when omitted"`
}

func (b ObjectBody) toObject(boardID uuid.UUID, id string) domain.BoardObject {
	return domain.BoardObject{
		ID:        id,
		BoardID:   boardID,
		Type:      b.Type,
		Data:      b.Data,
		X:         b.X,
		Y:         b.Y,
		Width:     b.Width,
		Height:    b.Height,
		ZIndex:    b.ZIndex,
		UpdatedAt: b.UpdatedAt,
	}
}

type ListObjectsInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	X       float64   `query:"x" doc:"Viewport left edge in world coordinates"`
	Y       float64   `query:"y" doc:"Viewport top edge in world coordinates"`
	Width   float64   `query:"width" doc:"Viewport width; culling applies when width and height are positive"`
	Height  float64   `query:"height" doc:"Viewport height"`
}

type ListObjectsOutput struct {
	Body []domain.BoardObject
}

type UpsertObjectInput struct {
	BoardID  uuid.UUID `path:"boardID" doc:"Board ID"`
	ObjectID string    `path:"objectID" maxLength:"128" doc:"Object ID"`
	Body     ObjectBody
}

type UpsertObjectOutput struct {
	Body struct {
		Object  *domain.BoardObject `json:"object"`
		Applied bool                `json:"applied" doc:"False when a newer copy was already stored; object is then the stored copy"`
	}
}

type DeleteObjectInput struct {
	BoardID  uuid.UUID `path:"boardID" doc:"Board ID"`
	ObjectID string    `path:"objectID" doc:"Object ID"`
}

type SyncObjectsInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Objects []ObjectBody `json:"objects" doc:"The client's local copies"`
	}
}

type SyncObjectsOutput struct {
	Body struct {
		Objects []domain.BoardObject `json:"objects" doc:"Server copies newer than the client's, or unknown to it"`
		Pushed  []string             `json:"pushed" doc:"IDs of client copies that were newer and got stored"`
	}
}

func RegisterObjectRoutes(api huma.API, store DataStore, events Broadcaster) {
	huma.Register(api, huma.Operation{
		OperationID: "list-objects",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/objects",
		Summary:     "List board objects, optionally culled to a viewport",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *ListObjectsInput) (*ListObjectsOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		if _, _, err := boardAccess(ctx, store, input.BoardID, userID); err != nil {
			return nil, err
		}

		objects, err := store.Objects().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list objects", err)
		}

		if input.Width > 0 && input.Height > 0 {
			objects = boardsync.Cull(objects, boardsync.Viewport{X: input.X, Y: input.Y, Width: input.Width, Height: input.Height})
		}
		if objects == nil {
			objects = make([]domain.BoardObject, 0)
		}
		domain.SortByZ(objects)

		return &ListObjectsOutput{Body: objects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-object",
		Method:      http.MethodPut,
		Path:        "/boards/{boardID}/objects/{objectID}",
		Summary:     "Create or update an object (last writer wins)",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *UpsertObjectInput) (*UpsertObjectOutput, error) {
		_, userID, err := requireEditor(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}

		o := input.Body.toObject(input.BoardID, input.ObjectID)
		if !o.Type.Valid() {
			return nil, huma.Error422UnprocessableEntity("unknown object type")
		}
		if o.UpdatedAt == "" {
			o.UpdatedAt = domain.Timestamp(time.Now())
		}

		existing, err := store.Objects().Get(ctx, input.BoardID, o.ID)
		created := errors.Is(err, domain.ErrNotFound)
		if err != nil && !created {
			return nil, huma.Error500InternalServerError("failed to load object", err)
		}
		if created {
			o.ApplyDefaults()
			o.CreatedBy = &userID
		} else {
			o.CreatedBy = existing.CreatedBy
		}

		applied, err := store.Objects().Upsert(ctx, &o)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				return nil, huma.Error422UnprocessableEntity("updated_at is not a valid timestamp")
			}
			return nil, huma.Error500InternalServerError("failed to save object", err)
		}

		out := &UpsertObjectOutput{}
		out.Body.Applied = applied
		if !applied {
			current, err := store.Objects().Get(ctx, input.BoardID, o.ID)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to load object", err)
			}
			out.Body.Object = current
			return out, nil
		}

		typ := ws.EventUpdate
		if created {
			typ = ws.EventCreate
		}
		publish(ctx, events, input.BoardID, ws.ObjectEvent(typ, o))

		out.Body.Object = &o
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-object",
		Method:        http.MethodDelete,
		Path:          "/boards/{boardID}/objects/{objectID}",
		Summary:       "Delete an object",
		Tags:          []string{"Objects"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteObjectInput) (*struct{}, error) {
		if _, _, err := requireEditor(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		if err := store.Objects().Delete(ctx, input.BoardID, input.ObjectID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("object not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete object", err)
		}

		publish(ctx, events, input.BoardID, ws.DeleteEvent(input.ObjectID))

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-objects",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/objects/sync",
		Summary:     "Reconcile a client's local objects with the server",
		Description: "Returns every server object the client lacks or holds an older copy of. " +
			"Editors also push client copies that are newer than the server's.",
		Tags: []string{"Objects"},
	}, func(ctx context.Context, input *SyncObjectsInput) (*SyncObjectsOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		_, role, err := boardAccess(ctx, store, input.BoardID, userID)
		if err != nil {
			return nil, err
		}

		server, err := store.Objects().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list objects", err)
		}

		client := make(map[string]domain.BoardObject, len(input.Body.Objects))
		batch := make([]domain.BoardObject, 0, len(input.Body.Objects))
		for _, b := range input.Body.Objects {
			if b.ID == "" {
				continue
			}
			o := b.toObject(input.BoardID, b.ID)
			boardsync.MergeOne(client, o)
			batch = append(batch, o)
		}

		out := &SyncObjectsOutput{}
		out.Body.Objects = boardsync.Diff(client, server)
		if out.Body.Objects == nil {
			out.Body.Objects = make([]domain.BoardObject, 0)
		}
		out.Body.Pushed = make([]string, 0)

		if role.CanEdit() {
			serverIndex := make(map[string]domain.BoardObject, len(server))
			for _, o := range server {
				serverIndex[o.ID] = o
			}
			for _, o := range boardsync.Diff(serverIndex, batch) {
				if !o.Type.Valid() {
					continue
				}
				_, known := serverIndex[o.ID]
				if !known {
					o.ApplyDefaults()
					o.CreatedBy = &userID
				}
				applied, err := store.Objects().Upsert(ctx, &o)
				if err != nil {
					if errors.Is(err, domain.ErrInvalidInput) {
						continue
					}
					return nil, huma.Error500InternalServerError("failed to store pushed object", err)
				}
				if !applied {
					continue
				}
				typ := ws.EventUpdate
				if !known {
					typ = ws.EventCreate
				}
				publish(ctx, events, input.BoardID, ws.ObjectEvent(typ, o))
				out.Body.Pushed = append(out.Body.Pushed, o.ID)
			}
		}

		return out, nil
	})
}
