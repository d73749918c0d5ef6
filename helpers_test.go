package authstack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// mockStore is a map-backed UserStore.
type mockStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User
}

func newMockStore() *mockStore {
	return &mockStore{users: make(map[int64]*User)}
}

func (s *mockStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mockStore) FindByPublicID(_ context.Context, publicID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PublicID == publicID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mockStore) FindByProviderIdentity(_ context.Context, provider ProviderKind, providerID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID == providerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mockStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *mockStore) Save(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextID++
		u.ID = s.nextID
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *mockStore) get(t *testing.T, email string) *User {
	t.Helper()
	u, err := s.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("user %s not found", email)
	}
	return u
}

// captureMailer records sent codes instead of mailing them.
type captureMailer struct {
	mu       sync.Mutex
	codes    map[string]string
	welcomes []string
	fail     bool
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{codes: make(map[string]string)}
}

func (m *captureMailer) SendOTPCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.codes[email] = code
	return nil
}

func (m *captureMailer) SendWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.welcomes = append(m.welcomes, email)
	return nil
}

func (m *captureMailer) code(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[email]
	if !ok {
		t.Fatalf("no code captured for %s", email)
	}
	return code
}

func (m *captureMailer) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

type testEnv struct {
	engine *Engine
	store  *mockStore
	mailer *captureMailer
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMockStore()
	mailer := newCaptureMailer()
	engine, err := NewBuilder().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithUserStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return &testEnv{engine: engine, store: store, mailer: mailer}
}

// registerVerified walks a user through signup and email verification.
func (env *testEnv) registerVerified(t *testing.T, email, pass string) PublicUser {
	t.Helper()
	ctx := context.Background()
	user, err := env.engine.Register(ctx, RegisterInput{Email: email, Password: pass, FullName: "Test User"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, email, env.mailer.code(t, email)); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return user
}
