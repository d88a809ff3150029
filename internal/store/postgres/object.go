package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orim/internal/boardsync"
	"github.com/gosuda/orim/internal/domain"
)

const objectColumns = `id, board_id, type, data, x, y, width, height, z_index, created_by, updated_at`

type ObjectRepo struct {
	pool *pgxpool.Pool
}

func NewObjectRepo(pool *pgxpool.Pool) *ObjectRepo {
	return &ObjectRepo{pool: pool}
}

// Upsert inserts o or replaces the stored copy when o is strictly newer. The
// comparison runs inside the statement, so concurrent writers cannot regress
// an object. A stale write returns applied=false.
func (r *ObjectRepo) Upsert(ctx context.Context, o *domain.BoardObject) (bool, error) {
	ts, ok := boardsync.ParseTimestamp(o.UpdatedAt)
	if !ok {
		return false, fmt.Errorf("objectRepo.Upsert: updated_at %q: %w", o.UpdatedAt, domain.ErrInvalidInput)
	}
	data := o.Data
	if data == nil {
		data = map[string]any{}
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO board_objects (id, board_id, type, data, x, y, width, height, z_index, created_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (board_id, id) DO UPDATE SET
		     type = EXCLUDED.type,
		     data = EXCLUDED.data,
		     x = EXCLUDED.x,
		     y = EXCLUDED.y,
		     width = EXCLUDED.width,
		     height = EXCLUDED.height,
		     z_index = EXCLUDED.z_index,
		     updated_at = EXCLUDED.updated_at
		 WHERE board_objects.updated_at < EXCLUDED.updated_at`,
		o.ID, o.BoardID, o.Type, data, o.X, o.Y, o.Width, o.Height, o.ZIndex, o.CreatedBy, ts,
	)
	if err != nil {
		return false, fmt.Errorf("objectRepo.Upsert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *ObjectRepo) Get(ctx context.Context, boardID uuid.UUID, id string) (*domain.BoardObject, error) {
	o, err := scanObject(r.pool.QueryRow(ctx,
		`SELECT `+objectColumns+` FROM board_objects WHERE board_id = $1 AND id = $2`,
		boardID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("objectRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("objectRepo.Get: %w", err)
	}

	return o, nil
}

func (r *ObjectRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.BoardObject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+objectColumns+` FROM board_objects WHERE board_id = $1 ORDER BY z_index, id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	objects := []domain.BoardObject{}
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("objectRepo.ListByBoard: scan: %w", err)
		}
		objects = append(objects, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("objectRepo.ListByBoard: rows: %w", err)
	}

	return objects, nil
}

func (r *ObjectRepo) CountByBoard(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT board_id, count(*) FROM board_objects GROUP BY board_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.CountByBoard: %w", err)
	}
	defer rows.Close()

	counts := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			boardID uuid.UUID
			n       int
		)
		if err := rows.Scan(&boardID, &n); err != nil {
			return nil, fmt.Errorf("objectRepo.CountByBoard: scan: %w", err)
		}
		counts[boardID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("objectRepo.CountByBoard: rows: %w", err)
	}

	return counts, nil
}

func (r *ObjectRepo) Count(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM board_objects WHERE $1::timestamptz IS NULL OR updated_at >= $1`,
		sinceArg(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("objectRepo.Count: %w", err)
	}

	return n, nil
}

func (r *ObjectRepo) Delete(ctx context.Context, boardID uuid.UUID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM board_objects WHERE board_id = $1 AND id = $2`,
		boardID, id,
	)
	if err != nil {
		return fmt.Errorf("objectRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("objectRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanObject(row pgx.Row) (*domain.BoardObject, error) {
	var (
		o  domain.BoardObject
		ts time.Time
	)
	if err := row.Scan(
		&o.ID, &o.BoardID, &o.Type, &o.Data, &o.X, &o.Y, &o.Width, &o.Height,
		&o.ZIndex, &o.CreatedBy, &ts,
	); err != nil {
		return nil, err
	}
	o.UpdatedAt = domain.Timestamp(ts)
	return &o, nil
}
