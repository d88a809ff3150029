// Package notify tells users about board invitations outside the app.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Invitation describes a pending board invitation.
type Invitation struct {
	BoardID      uuid.UUID
	BoardName    string
	BoardSlug    string
	InviteeEmail string
	InviterName  string
	Message      string
	// Link points at the board in the web app. Empty when no base URL is configured.
	Link string
}

// Text renders the invitation as a single chat message.
func (inv Invitation) Text() string {
	var sb strings.Builder
	inviter := inv.InviterName
	if inviter == "" {
		inviter = "Someone"
	}
	fmt.Fprintf(&sb, "%s invited %s to the board %q", inviter, inv.InviteeEmail, inv.BoardName)
	if inv.Message != "" {
		fmt.Fprintf(&sb, ": %s", inv.Message)
	}
	if inv.Link != "" {
		sb.WriteString("\n")
		sb.WriteString(inv.Link)
	}
	return sb.String()
}

// BoardLink joins baseURL and slug into the board URL used by the web app.
func BoardLink(baseURL, slug string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/board/" + slug
}

// Notifier delivers invitation notices.
type Notifier interface {
	NotifyInvitation(ctx context.Context, inv Invitation) error
}

// LogNotifier writes invitations to the application log. It is the fallback
// when no chat integration is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyInvitation(_ context.Context, inv Invitation) error {
	log.Info().
		Str("board_id", inv.BoardID.String()).
		Str("invitee", inv.InviteeEmail).
		Str("link", inv.Link).
		Msg("notify: board invitation")
	return nil
}
