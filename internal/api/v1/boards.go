package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/domain"
)

type CreateBoardInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"Board name"`
	}
}

type BoardOutput struct {
	Body *domain.Board
}

type ListBoardsOutput struct {
	Body []*domain.Board
}

type GetBoardBySlugInput struct {
	Slug string `path:"slug" doc:"Board slug"`
}

type RenameBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Name string `json:"name" maxLength:"200" doc:"New board name"`
	}
}

func RegisterBoardRoutes(api huma.API, store DataStore, events Broadcaster) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/boards",
		Summary:       "Create a board",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		b, err := domain.NewBoard(userID, input.Body.Name)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		if err := store.Boards().Create(ctx, b); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("board slug already exists")
			}
			return nil, huma.Error500InternalServerError("failed to create board", err)
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards the caller owns or has joined",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		boards, err := store.Boards().ListForUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}
		if boards == nil {
			boards = make([]*domain.Board, 0)
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board-by-slug",
		Method:      http.MethodGet,
		Path:        "/boards/by-slug/{slug}",
		Summary:     "Get a board by slug",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardBySlugInput) (*BoardOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		b, err := store.Boards().GetBySlug(ctx, input.Slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}

		if _, _, err := boardAccess(ctx, store, b.ID, userID); err != nil {
			return nil, err
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{boardID}/rename",
		Summary:     "Rename a board (owner only)",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *RenameBoardInput) (*BoardOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		b, err := store.Boards().GetByID(ctx, input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}

		if err := b.Rename(userID, input.Body.Name); err != nil {
			switch {
			case errors.Is(err, domain.ErrForbidden):
				return nil, huma.Error403Forbidden("only the board owner can rename the board")
			case errors.Is(err, domain.ErrInvalidInput):
				return nil, huma.Error400BadRequest("name is required")
			default:
				return nil, huma.Error500InternalServerError("failed to rename board", err)
			}
		}

		if err := store.Boards().Update(ctx, b); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to rename board", err)
		}

		publish(ctx, events, b.ID, ws.RenameEvent(b.Name))

		return &BoardOutput{Body: b}, nil
	})
}
