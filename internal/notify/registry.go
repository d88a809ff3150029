package notify

import (
	"context"
	"errors"
	"fmt"
)

// Multi fans an invitation out to every registered notifier. All notifiers are
// attempted; their errors are joined.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Register appends n to the fan-out list.
func (m *Multi) Register(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) NotifyInvitation(ctx context.Context, inv Invitation) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyInvitation(ctx, inv); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify.Multi.NotifyInvitation: %w", err)
	}
	return nil
}
