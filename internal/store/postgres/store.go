package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orim/internal/domain"
)

type Store struct {
	pool      *pgxpool.Pool
	boards    *BoardRepo
	members   *MemberRepo
	objects   *ObjectRepo
	profiles  *ProfileRepo
	appConfig *AppConfigRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:      pool,
		boards:    NewBoardRepo(pool),
		members:   NewMemberRepo(pool),
		objects:   NewObjectRepo(pool),
		profiles:  NewProfileRepo(pool),
		appConfig: NewAppConfigRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Boards() domain.BoardRepository        { return s.boards }
func (s *Store) Members() domain.MemberRepository      { return s.members }
func (s *Store) Objects() domain.ObjectRepository      { return s.objects }
func (s *Store) Profiles() domain.ProfileRepository    { return s.profiles }
func (s *Store) AppConfig() domain.AppConfigRepository { return s.appConfig }
