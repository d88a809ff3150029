package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orim/internal/domain"
)

const profileColumns = `id, email, display_name, is_superuser, created_at, last_seen_at`

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	out, err := scanProfile(r.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, email, display_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
		     email = EXCLUDED.email,
		     display_name = CASE WHEN EXCLUDED.display_name = '' THEN profiles.display_name ELSE EXCLUDED.display_name END,
		     last_seen_at = now()
		 RETURNING `+profileColumns,
		p.ID, domain.NormalizeEmail(p.Email), p.DisplayName,
	))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("profileRepo.Upsert: email %q: %w", p.Email, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.Upsert: %w", err)
	}

	return out, nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profileRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.GetByID: %w", err)
	}

	return p, nil
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(email) = $1`,
		domain.NormalizeEmail(email),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profileRepo.GetByEmail: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.GetByEmail: %w", err)
	}

	return p, nil
}

func (r *ProfileRepo) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("profileRepo.List: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("profileRepo.List: scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profileRepo.List: rows: %w", err)
	}

	return profiles, nil
}

func (r *ProfileRepo) SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET is_superuser = $1 WHERE id = $2`, superuser, id,
	)
	if err != nil {
		return fmt.Errorf("profileRepo.SetSuperuser: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profileRepo.SetSuperuser: %w", domain.ErrNotFound)
	}

	return nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Superuser, &p.CreatedAt, &p.LastSeenAt); err != nil {
		return nil, err
	}
	return &p, nil
}
