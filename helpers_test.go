package credgate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kyralis/credgate/password"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return mr, rdb
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockStore is a map-backed CredentialStore + RoleStore with injectable
// failures.
type mockStore struct {
	mu    sync.Mutex
	users map[string]UserRecord // by ID
	roles map[string][]string

	findErr   error
	updateErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		users: make(map[string]UserRecord),
		roles: make(map[string][]string),
	}
}

func (s *mockStore) put(user UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *mockStore) get(t *testing.T, id string) UserRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		t.Fatalf("user %q not in store", id)
	}
	return user
}

func (s *mockStore) findOne(match func(UserRecord) bool) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, user := range s.users {
		if match(user) {
			out := user
			return &out, nil
		}
	}
	return nil, nil
}

func (s *mockStore) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	return s.findOne(func(u UserRecord) bool { return u.Username == username })
}

func (s *mockStore) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	return s.findOne(func(u UserRecord) bool { return u.Email == email })
}

func (s *mockStore) FindByResetToken(_ context.Context, token string) (*UserRecord, error) {
	if token == "" {
		return nil, nil
	}
	return s.findOne(func(u UserRecord) bool { return u.ResetPasswordToken == token })
}

func (s *mockStore) Update(_ context.Context, user UserRecord) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return UserRecord{}, s.updateErr
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *mockStore) RolesForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	return append([]string(nil), s.roles[userID]...), nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Token.PrivateKey = []byte("test-hs256-key")
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, store *mockStore, clk *fakeClock) *Engine {
	t.Helper()

	_, rdb := newTestRedis(t)

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithRoleStore(store)
	if clk != nil {
		b = b.WithClock(clk.Now)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func testHash(t *testing.T, plaintext string) string {
	t.Helper()

	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("hasher init failed: %v", err)
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return hash
}
