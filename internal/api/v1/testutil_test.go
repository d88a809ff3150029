package v1_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/agent"
	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/auth"
	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/notify"
	"github.com/gosuda/orim/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the caller identity for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithIdentity(context.Background(), auth.Identity{
		UserID:      userID,
		Email:       "user-" + userID.String()[:8] + "@example.com",
		DisplayName: "Ada",
	})
}

func superCtx(userID uuid.UUID) context.Context {
	return middleware.WithIdentity(context.Background(), auth.Identity{
		UserID:    userID,
		Email:     "root@example.com",
		Superuser: true,
	})
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	boards    *mockBoardRepo
	members   *mockMemberRepo
	objects   *mockObjectRepo
	profiles  *mockProfileRepo
	appConfig *mockAppConfigRepo
}

func (m *mockDataStore) Boards() domain.BoardRepository        { return m.boards }
func (m *mockDataStore) Members() domain.MemberRepository      { return m.members }
func (m *mockDataStore) Objects() domain.ObjectRepository      { return m.objects }
func (m *mockDataStore) Profiles() domain.ProfileRepository    { return m.profiles }
func (m *mockDataStore) AppConfig() domain.AppConfigRepository { return m.appConfig }

// withBoard makes the board and member mocks resolve b and the given
// memberships. Other board IDs are not found.
func withBoard(store *mockDataStore, b *domain.Board, members ...*domain.BoardMember) {
	if store.boards == nil {
		store.boards = &mockBoardRepo{}
	}
	if store.members == nil {
		store.members = &mockMemberRepo{}
	}
	store.boards.getByIDFunc = func(_ context.Context, id uuid.UUID) (*domain.Board, error) {
		if id != b.ID {
			return nil, domain.ErrNotFound
		}
		cp := *b
		return &cp, nil
	}
	store.members.getFunc = func(_ context.Context, boardID, userID uuid.UUID) (*domain.BoardMember, error) {
		for _, m := range members {
			if m.BoardID == boardID && m.UserID == userID {
				cp := *m
				return &cp, nil
			}
		}
		return nil, domain.ErrNotFound
	}
}

func newBoard(owner uuid.UUID) *domain.Board {
	return &domain.Board{ID: uuid.New(), Slug: "roadmap-1a2b3c4d", Name: "Roadmap", OwnerID: owner}
}

func membership(b *domain.Board, userID uuid.UUID, role domain.Role, status domain.InvitationStatus) *domain.BoardMember {
	return &domain.BoardMember{ID: uuid.New(), BoardID: b.ID, UserID: userID, Role: role, Status: status}
}

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	createFunc      func(ctx context.Context, b *domain.Board) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	getBySlugFunc   func(ctx context.Context, slug string) (*domain.Board, error)
	updateFunc      func(ctx context.Context, b *domain.Board) error
	listForUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error)
	listAllFunc     func(ctx context.Context) ([]*domain.Board, error)
	countFunc       func(ctx context.Context, since time.Time) (int, error)
}

func (m *mockBoardRepo) Create(ctx context.Context, b *domain.Board) error {
	return m.createFunc(ctx, b)
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) GetBySlug(ctx context.Context, slug string) (*domain.Board, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockBoardRepo) Update(ctx context.Context, b *domain.Board) error {
	return m.updateFunc(ctx, b)
}

func (m *mockBoardRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	return m.listForUserFunc(ctx, userID)
}

func (m *mockBoardRepo) ListAll(ctx context.Context) ([]*domain.Board, error) {
	return m.listAllFunc(ctx)
}

func (m *mockBoardRepo) Count(ctx context.Context, since time.Time) (int, error) {
	return m.countFunc(ctx, since)
}

// ---------------------------------------------------------------------------
// Mock MemberRepository
// ---------------------------------------------------------------------------

type mockMemberRepo struct {
	createFunc             func(ctx context.Context, m *domain.BoardMember) error
	getFunc                func(ctx context.Context, boardID, userID uuid.UUID) (*domain.BoardMember, error)
	updateFunc             func(ctx context.Context, m *domain.BoardMember) error
	setStatusFunc          func(ctx context.Context, boardID, userID uuid.UUID, status domain.InvitationStatus) (*domain.BoardMember, error)
	listByBoardFunc        func(ctx context.Context, boardID uuid.UUID) ([]*domain.BoardMember, error)
	listPendingForUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.BoardMember, error)
	listAllFunc            func(ctx context.Context) ([]*domain.BoardMember, error)
}

func (m *mockMemberRepo) Create(ctx context.Context, bm *domain.BoardMember) error {
	return m.createFunc(ctx, bm)
}

func (m *mockMemberRepo) Get(ctx context.Context, boardID, userID uuid.UUID) (*domain.BoardMember, error) {
	return m.getFunc(ctx, boardID, userID)
}

func (m *mockMemberRepo) Update(ctx context.Context, bm *domain.BoardMember) error {
	return m.updateFunc(ctx, bm)
}

func (m *mockMemberRepo) SetStatus(ctx context.Context, boardID, userID uuid.UUID, status domain.InvitationStatus) (*domain.BoardMember, error) {
	return m.setStatusFunc(ctx, boardID, userID, status)
}

func (m *mockMemberRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.BoardMember, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockMemberRepo) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*domain.BoardMember, error) {
	return m.listPendingForUserFunc(ctx, userID)
}

func (m *mockMemberRepo) ListAll(ctx context.Context) ([]*domain.BoardMember, error) {
	return m.listAllFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock ObjectRepository
// ---------------------------------------------------------------------------

type mockObjectRepo struct {
	upsertFunc       func(ctx context.Context, o *domain.BoardObject) (bool, error)
	getFunc          func(ctx context.Context, boardID uuid.UUID, id string) (*domain.BoardObject, error)
	listByBoardFunc  func(ctx context.Context, boardID uuid.UUID) ([]domain.BoardObject, error)
	deleteFunc       func(ctx context.Context, boardID uuid.UUID, id string) error
	countByBoardFunc func(ctx context.Context) (map[uuid.UUID]int, error)
	countFunc        func(ctx context.Context, since time.Time) (int, error)
}

func (m *mockObjectRepo) Upsert(ctx context.Context, o *domain.BoardObject) (bool, error) {
	return m.upsertFunc(ctx, o)
}

func (m *mockObjectRepo) Get(ctx context.Context, boardID uuid.UUID, id string) (*domain.BoardObject, error) {
	return m.getFunc(ctx, boardID, id)
}

func (m *mockObjectRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.BoardObject, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockObjectRepo) Delete(ctx context.Context, boardID uuid.UUID, id string) error {
	return m.deleteFunc(ctx, boardID, id)
}

func (m *mockObjectRepo) CountByBoard(ctx context.Context) (map[uuid.UUID]int, error) {
	return m.countByBoardFunc(ctx)
}

func (m *mockObjectRepo) Count(ctx context.Context, since time.Time) (int, error) {
	return m.countFunc(ctx, since)
}

// ---------------------------------------------------------------------------
// Mock ProfileRepository
// ---------------------------------------------------------------------------

type mockProfileRepo struct {
	upsertFunc       func(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	getByEmailFunc   func(ctx context.Context, email string) (*domain.Profile, error)
	listFunc         func(ctx context.Context) ([]*domain.Profile, error)
	setSuperuserFunc func(ctx context.Context, id uuid.UUID, superuser bool) error
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	return m.upsertFunc(ctx, p)
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockProfileRepo) List(ctx context.Context) ([]*domain.Profile, error) {
	return m.listFunc(ctx)
}

func (m *mockProfileRepo) SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) error {
	return m.setSuperuserFunc(ctx, id, superuser)
}

// ---------------------------------------------------------------------------
// Mock AppConfigRepository
// ---------------------------------------------------------------------------

// mockAppConfigRepo is a map-backed key/value store.
type mockAppConfigRepo struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (m *mockAppConfigRepo) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *mockAppConfigRepo) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

// ---------------------------------------------------------------------------
// Recording Broadcaster and Notifier
// ---------------------------------------------------------------------------

type mockBroadcaster struct {
	mu     sync.Mutex
	events []ws.BoardEvent
	boards []uuid.UUID
	err    error
}

func (m *mockBroadcaster) PublishBoard(_ context.Context, boardID uuid.UUID, ev ws.BoardEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	m.boards = append(m.boards, boardID)
	return m.err
}

func (m *mockBroadcaster) published() []ws.BoardEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ws.BoardEvent(nil), m.events...)
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []notify.Invitation
	err  error
}

func (m *mockNotifier) NotifyInvitation(_ context.Context, inv notify.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, inv)
	return m.err
}

// ---------------------------------------------------------------------------
// Agent stubs
// ---------------------------------------------------------------------------

type stubAdapter struct {
	name     string
	healthy  bool
	chatFunc func(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

func (s *stubAdapter) Name() string                       { return s.name }
func (s *stubAdapter) HealthCheck(_ context.Context) bool { return s.healthy }
func (s *stubAdapter) Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	return s.chatFunc(ctx, req)
}

// stubRegistry maps backend names to adapters without a fallback.
type stubRegistry map[string]agent.Adapter

func (r stubRegistry) Resolve(backend string) agent.Adapter {
	a, ok := r[backend]
	if !ok {
		return nil
	}
	return a
}
