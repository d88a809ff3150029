package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/notify"
	"github.com/gosuda/orim/internal/server/middleware"
)

type InviteMemberInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Email   string `json:"email" maxLength:"320" doc:"Invitee email address"`
		Message string `json:"message,omitempty" maxLength:"1000" doc:"Optional note shown with the invitation"`
	}
}

type InviteMemberOutput struct {
	Body struct {
		Message string              `json:"message"`
		Member  *domain.BoardMember `json:"member"`
	}
}

type BoardIDInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

type ListMembersOutput struct {
	Body []*domain.BoardMember
}

type MemberOutput struct {
	Body *domain.BoardMember
}

// Invitation is a pending membership together with the board it is for.
type Invitation struct {
	domain.BoardMember
	BoardName string `json:"board_name"`
	BoardSlug string `json:"board_slug"`
}

type ListInvitationsOutput struct {
	Body []Invitation
}

// MemberRoutesConfig carries the settings the membership handlers need.
type MemberRoutesConfig struct {
	Notifier   Notifier
	AppBaseURL string
}

func RegisterMemberRoutes(api huma.API, store DataStore, cfg MemberRoutesConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "invite-member",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/invite",
		Summary:     "Invite a user to a board (owner only)",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *InviteMemberInput) (*InviteMemberOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		board, err := store.Boards().GetByID(ctx, input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}
		if board.OwnerID != userID {
			return nil, huma.Error403Forbidden("only the board owner can invite members")
		}

		email := domain.NormalizeEmail(input.Body.Email)
		if email == "" {
			return nil, huma.Error400BadRequest("email is required")
		}

		invitee, err := store.Profiles().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("no user found with that email; they need to create an account first")
			}
			return nil, huma.Error500InternalServerError("failed to look up invitee", err)
		}
		if invitee.ID == userID {
			return nil, huma.Error400BadRequest("you cannot invite yourself")
		}

		var message *string
		if m := strings.TrimSpace(input.Body.Message); m != "" {
			message = &m
		}

		out := &InviteMemberOutput{}
		existing, err := store.Members().Get(ctx, board.ID, invitee.ID)
		switch {
		case err == nil:
			if reErr := existing.Reinvite(userID, message); reErr != nil {
				return nil, inviteConflict(reErr)
			}
			if err := store.Members().Update(ctx, existing); err != nil {
				return nil, huma.Error500InternalServerError("failed to re-send invitation", err)
			}
			out.Body.Message = "Invitation re-sent!"
			out.Body.Member = existing
		case errors.Is(err, domain.ErrNotFound):
			m := domain.NewInvitation(board.ID, invitee.ID, userID, message)
			if err := store.Members().Create(ctx, m); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return nil, huma.Error409Conflict("this user has already been invited")
				}
				return nil, huma.Error500InternalServerError("failed to create invitation", err)
			}
			out.Body.Message = "Invitation sent!"
			out.Body.Member = m
		default:
			return nil, huma.Error500InternalServerError("failed to check membership", err)
		}

		if cfg.Notifier != nil {
			inv := notify.Invitation{
				BoardID:      board.ID,
				BoardName:    board.Name,
				BoardSlug:    board.Slug,
				InviteeEmail: invitee.Email,
				InviterName:  middleware.DisplayNameFromContext(ctx),
				Link:         notify.BoardLink(cfg.AppBaseURL, board.Slug),
			}
			if message != nil {
				inv.Message = *message
			}
			if err := cfg.Notifier.NotifyInvitation(ctx, inv); err != nil {
				log.Warn().Err(err).Str("board_id", board.ID.String()).Msg("invitation notification failed")
			}
		}

		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/members",
		Summary:     "List board members and invitations",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *BoardIDInput) (*ListMembersOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		if _, _, err := boardAccess(ctx, store, input.BoardID, userID); err != nil {
			return nil, err
		}

		members, err := store.Members().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list members", err)
		}
		if members == nil {
			members = make([]*domain.BoardMember, 0)
		}

		return &ListMembersOutput{Body: members}, nil
	})

	registerJoin(api, store, "accept", domain.InvitationAccepted)
	registerJoin(api, store, "decline", domain.InvitationDeclined)

	huma.Register(api, huma.Operation{
		OperationID: "list-invitations",
		Method:      http.MethodGet,
		Path:        "/invitations",
		Summary:     "List pending invitations for the caller",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, _ *struct{}) (*ListInvitationsOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		pending, err := store.Members().ListPendingForUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list invitations", err)
		}

		out := make([]Invitation, 0, len(pending))
		for _, m := range pending {
			inv := Invitation{BoardMember: *m}
			b, err := store.Boards().GetByID(ctx, m.BoardID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, huma.Error500InternalServerError("failed to load invitation board", err)
			}
			inv.BoardName = b.Name
			inv.BoardSlug = b.Slug
			out = append(out, inv)
		}

		return &ListInvitationsOutput{Body: out}, nil
	})
}

// registerJoin adds the accept and decline endpoints. Both upsert the
// caller's membership row, so a shared board link can be joined without a
// prior invitation.
func registerJoin(api huma.API, store DataStore, action string, status domain.InvitationStatus) {
	huma.Register(api, huma.Operation{
		OperationID: action + "-invitation",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/join/" + action,
		Summary:     strings.ToUpper(action[:1]) + action[1:] + " a board invitation",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *BoardIDInput) (*MemberOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}

		board, err := store.Boards().GetByID(ctx, input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to get board", err)
		}
		if board.OwnerID == userID {
			return nil, huma.Error400BadRequest("the owner is always a member of their board")
		}

		m, err := store.Members().SetStatus(ctx, board.ID, userID, status)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to update membership", err)
		}

		return &MemberOutput{Body: m}, nil
	})
}

func inviteConflict(err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyMember):
		return huma.Error409Conflict("this user is already a member")
	case errors.Is(err, domain.ErrAlreadyInvited):
		return huma.Error409Conflict("this user has already been invited")
	default:
		return huma.Error409Conflict(err.Error())
	}
}
