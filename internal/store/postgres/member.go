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

const memberColumns = `id, board_id, user_id, role, status, invited_at, invited_by, message`

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) Create(ctx context.Context, m *domain.BoardMember) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO board_members (id, board_id, user_id, role, status, invited_at, invited_by, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.BoardID, m.UserID, m.Role, m.Status, m.InvitedAt, m.InvitedBy, m.Message,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("memberRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("memberRepo.Create: %w", err)
	}

	return nil
}

func (r *MemberRepo) Get(ctx context.Context, boardID, userID uuid.UUID) (*domain.BoardMember, error) {
	m, err := scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM board_members WHERE board_id = $1 AND user_id = $2`,
		boardID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("memberRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Get: %w", err)
	}

	return m, nil
}

func (r *MemberRepo) Update(ctx context.Context, m *domain.BoardMember) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE board_members SET role = $1, status = $2, invited_at = $3, invited_by = $4, message = $5
		 WHERE id = $6`,
		m.Role, m.Status, m.InvitedAt, m.InvitedBy, m.Message, m.ID,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memberRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *MemberRepo) SetStatus(ctx context.Context, boardID, userID uuid.UUID, status domain.InvitationStatus) (*domain.BoardMember, error) {
	m, err := scanMember(r.pool.QueryRow(ctx,
		`INSERT INTO board_members (id, board_id, user_id, role, status)
		 VALUES ($1, $2, $3, 'editor', $4)
		 ON CONFLICT (board_id, user_id) DO UPDATE SET status = EXCLUDED.status
		 RETURNING `+memberColumns,
		uuid.New(), boardID, userID, status,
	))
	if err != nil {
		return nil, fmt.Errorf("memberRepo.SetStatus: %w", err)
	}

	return m, nil
}

func (r *MemberRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.BoardMember, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM board_members WHERE board_id = $1 ORDER BY invited_at`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows, "memberRepo.ListByBoard")
}

func (r *MemberRepo) ListAll(ctx context.Context) ([]*domain.BoardMember, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM board_members ORDER BY board_id, invited_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListAll: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows, "memberRepo.ListAll")
}

func (r *MemberRepo) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*domain.BoardMember, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM board_members
		 WHERE user_id = $1 AND status = 'pending'
		 ORDER BY invited_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListPendingForUser: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows, "memberRepo.ListPendingForUser")
}

func scanMember(row pgx.Row) (*domain.BoardMember, error) {
	var m domain.BoardMember
	if err := row.Scan(&m.ID, &m.BoardID, &m.UserID, &m.Role, &m.Status, &m.InvitedAt, &m.InvitedBy, &m.Message); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMembers(rows pgx.Rows, caller string) ([]*domain.BoardMember, error) {
	var members []*domain.BoardMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return members, nil
}
