package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PubSub fans board events out to every server instance.
type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

// NewFromClient wraps an existing client. The caller keeps ownership of the
// connection but Close still closes it.
func NewFromClient(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// subscriptionBuffer bounds both the go-redis delivery channel and ours.
const subscriptionBuffer = 64

// Subscribe listens on one or more channels. Messages from all of them are
// delivered on the returned channel, which closes when ctx ends or cleanup is
// called. Cleanup is idempotent.
func (ps *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error) {
	if len(channels) == 0 {
		return nil, nil, errors.New("redis.PubSub.Subscribe: no channels")
	}

	sub := ps.client.Subscribe(ctx, channels...)
	if err := awaitConfirmations(ctx, sub, len(channels)); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: %w", err)
	}

	out := make(chan []byte, subscriptionBuffer)
	go forward(ctx, sub.Channel(redis.WithChannelSize(subscriptionBuffer)), out)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { _ = sub.Close() })
	}
	return out, cleanup, nil
}

// awaitConfirmations blocks until the server has acknowledged n
// subscriptions, so no message published afterwards is missed.
func awaitConfirmations(ctx context.Context, sub *redis.PubSub, n int) error {
	for confirmed := 0; confirmed < n; {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive confirmation: %w", err)
		}
		if _, ok := msg.(*redis.Subscription); ok {
			confirmed++
		}
	}
	return nil
}

func forward(ctx context.Context, in <-chan *redis.Message, out chan<- []byte) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// BoardChannel carries object changes for a board.
func BoardChannel(boardID uuid.UUID) string {
	return "board:" + boardID.String()
}

// CursorChannel carries cursor movement and leave events for a board.
func CursorChannel(boardID uuid.UUID) string {
	return "cursor:" + boardID.String()
}

// PresenceKey names the hash holding the live cursors of a board.
func PresenceKey(boardID uuid.UUID) string {
	return "presence:" + boardID.String()
}
