// Package memstore provides in-memory implementations of the engine's
// credential and role stores. It backs the bundled example and the test
// suite; production deployments implement the interfaces against their own
// database.
package memstore

import (
	"context"
	"sync"

	credgate "github.com/kyralis/credgate"
	"github.com/google/uuid"
)

// Store is a map-backed [credgate.CredentialStore] and
// [credgate.RoleStore]. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[string]credgate.UserRecord // by ID
	roles map[string][]string            // by user ID
}

func New() *Store {
	return &Store{
		users: make(map[string]credgate.UserRecord),
		roles: make(map[string][]string),
	}
}

// Seed inserts a user record, assigning a fresh ID when empty, and returns
// the stored record.
func (s *Store) Seed(user credgate.UserRecord, roles ...string) credgate.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.users[user.ID] = user
	if len(roles) > 0 {
		s.roles[user.ID] = append([]string(nil), roles...)
	}
	return user
}

// Get returns the record with the given ID, if present.
func (s *Store) Get(id string) (credgate.UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	return user, ok
}

func (s *Store) FindByUsername(_ context.Context, username string) (*credgate.UserRecord, error) {
	return s.findOne(func(u credgate.UserRecord) bool { return u.Username == username })
}

func (s *Store) FindByEmail(_ context.Context, email string) (*credgate.UserRecord, error) {
	return s.findOne(func(u credgate.UserRecord) bool { return u.Email == email })
}

func (s *Store) FindByResetToken(_ context.Context, token string) (*credgate.UserRecord, error) {
	if token == "" {
		return nil, nil
	}
	return s.findOne(func(u credgate.UserRecord) bool { return u.ResetPasswordToken == token })
}

func (s *Store) findOne(match func(credgate.UserRecord) bool) (*credgate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if match(user) {
			out := user
			return &out, nil
		}
	}
	return nil, nil
}

// Update performs a full-row replace keyed by ID.
func (s *Store) Update(_ context.Context, user credgate.UserRecord) (credgate.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	return user, nil
}

func (s *Store) RolesForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.roles[userID]...), nil
}
