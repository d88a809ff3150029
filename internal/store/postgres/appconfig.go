package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orim/internal/domain"
)

type AppConfigRepo struct {
	pool *pgxpool.Pool
}

func NewAppConfigRepo(pool *pgxpool.Pool) *AppConfigRepo {
	return &AppConfigRepo{pool: pool}
}

func (r *AppConfigRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("appConfigRepo.Get: %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("appConfigRepo.Get: %w", err)
	}

	return value, nil
}

func (r *AppConfigRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO app_config (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("appConfigRepo.Set: %w", err)
	}

	return nil
}
