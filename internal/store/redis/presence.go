package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orim/internal/domain"
)

// DefaultPresenceTTL expires a board's presence hash once nobody writes to it.
const DefaultPresenceTTL = 30 * time.Second

// Presence stores one CursorPosition per user per board in a Redis hash. The
// key TTL is refreshed on every write so boards nobody is looking at vanish
// on their own.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(ps *PubSub, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{client: ps.client, ttl: ttl}
}

func (p *Presence) Track(ctx context.Context, boardID uuid.UUID, cur domain.CursorPosition) error {
	payload, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("redis.Presence.Track: marshal: %w", err)
	}

	key := PresenceKey(boardID)
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, key, cur.UserID.String(), payload)
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis.Presence.Track: %w", err)
	}
	return nil
}

func (p *Presence) Untrack(ctx context.Context, boardID, userID uuid.UUID) error {
	if err := p.client.HDel(ctx, PresenceKey(boardID), userID.String()).Err(); err != nil {
		return fmt.Errorf("redis.Presence.Untrack: %w", err)
	}
	return nil
}

// List returns the tracked cursors of a board. Entries that fail to decode are
// skipped.
func (p *Presence) List(ctx context.Context, boardID uuid.UUID) ([]domain.CursorPosition, error) {
	entries, err := p.client.HGetAll(ctx, PresenceKey(boardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.Presence.List: %w", err)
	}

	cursors := make([]domain.CursorPosition, 0, len(entries))
	for field, raw := range entries {
		var cur domain.CursorPosition
		if err := json.Unmarshal([]byte(raw), &cur); err != nil {
			log.Warn().Err(err).Str("board_id", boardID.String()).Str("field", field).Msg("dropping malformed presence entry")
			continue
		}
		cursors = append(cursors, cur)
	}
	return cursors, nil
}
