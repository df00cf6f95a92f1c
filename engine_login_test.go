package credgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func seedActiveUser(t *testing.T, store *mockStore, plaintext string) UserRecord {
	t.Helper()

	user := UserRecord{
		ID:           "u-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: testHash(t, plaintext),
		Status:       AccountActive,
	}
	store.put(user)
	store.roles[user.ID] = []string{"admin", "editor"}
	return user
}

func TestLoginSuccess(t *testing.T) {
	store := newMockStore()
	clk := newFakeClock()
	engine := newTestEngine(t, testConfig(), store, clk)
	seedActiveUser(t, store, "s3cret-pass")

	identity, err := engine.Login(context.Background(), "alice", "s3cret-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if identity.User.Username != "alice" {
		t.Errorf("username = %q, want alice", identity.User.Username)
	}
	if len(identity.Roles) != 2 || identity.Roles[0] != "admin" {
		t.Errorf("roles = %v, want [admin editor]", identity.Roles)
	}

	stored := store.get(t, "u-1")
	if stored.LoginCount != 1 {
		t.Errorf("login count = %d, want 1", stored.LoginCount)
	}
	if stored.LastLogin == nil {
		t.Fatal("last login not stamped")
	}
	if !stored.LastLogin.Equal(clk.Now()) {
		t.Errorf("last login = %v, want %v", stored.LastLogin, clk.Now())
	}
	if loc := stored.LastLogin.Location(); loc != time.UTC {
		t.Errorf("last login location = %v, want UTC", loc)
	}
}

func TestLoginUnknownUserAndWrongPasswordIndistinguishable(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	seedActiveUser(t, store, "s3cret-pass")

	_, errUnknown := engine.Login(context.Background(), "nobody", "whatever")
	_, errWrong := engine.Login(context.Background(), "alice", "wrong-pass")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("error text differs: %q vs %q", errUnknown, errWrong)
	}
}

func TestLoginEmptyInput(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	seedActiveUser(t, store, "s3cret-pass")

	if _, err := engine.Login(context.Background(), "", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty username: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(context.Background(), "alice", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty password: got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginSuspendedRegardlessOfPassword(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	user := seedActiveUser(t, store, "s3cret-pass")
	user.Status = AccountSuspended
	store.put(user)

	// Correct password first: suspension wins before the hash is checked.
	if _, err := engine.Login(context.Background(), "alice", "s3cret-pass"); !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("correct password: got %v, want ErrAccountSuspended", err)
	}
	if _, err := engine.Login(context.Background(), "alice", "wrong-pass"); !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("wrong password: got %v, want ErrAccountSuspended", err)
	}

	// Failed attempts against a suspended account do not move the counter.
	if got := store.get(t, "u-1").BadLoginAttempts; got != 0 {
		t.Errorf("bad login attempts = %d, want 0", got)
	}
}

func TestLoginMustResetPassword(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	user := seedActiveUser(t, store, "s3cret-pass")
	user.MustResetPassword = true
	store.put(user)

	if _, err := engine.Login(context.Background(), "alice", "s3cret-pass"); !errors.Is(err, ErrPasswordResetRequired) {
		t.Fatalf("got %v, want ErrPasswordResetRequired", err)
	}
}

func TestLoginBadAttemptsSuspendAtThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Login.MaxBadLogins = 3

	store := newMockStore()
	engine := newTestEngine(t, cfg, store, nil)
	seedActiveUser(t, store, "s3cret-pass")

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := engine.Login(context.Background(), "alice", "wrong-pass")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v, want ErrInvalidCredentials", attempt, err)
		}

		stored := store.get(t, "u-1")
		if stored.BadLoginAttempts != attempt {
			t.Errorf("attempt %d: counter = %d, want %d", attempt, stored.BadLoginAttempts, attempt)
		}
		wantStatus := AccountActive
		if attempt >= 3 {
			wantStatus = AccountSuspended
		}
		if stored.Status != wantStatus {
			t.Errorf("attempt %d: status = %v, want %v", attempt, stored.Status, wantStatus)
		}
	}

	// Once suspended, even the correct password is refused.
	if _, err := engine.Login(context.Background(), "alice", "s3cret-pass"); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("post-suspension: got %v, want ErrAccountSuspended", err)
	}

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricAccountSuspended]; got != 1 {
		t.Errorf("suspension metric = %d, want 1", got)
	}
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	seedActiveUser(t, store, "s3cret-pass")

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(context.Background(), "alice", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("setup attempt %d: %v", i, err)
		}
	}
	if got := store.get(t, "u-1").BadLoginAttempts; got != 2 {
		t.Fatalf("counter after failures = %d, want 2", got)
	}

	if _, err := engine.Login(context.Background(), "alice", "s3cret-pass"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got := store.get(t, "u-1").BadLoginAttempts; got != 0 {
		t.Errorf("counter after success = %d, want 0", got)
	}
}

func TestLoginStoreUnavailable(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	seedActiveUser(t, store, "s3cret-pass")
	store.findErr = errors.New("connection refused")

	if _, err := engine.Login(context.Background(), "alice", "s3cret-pass"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestLoginCounterPersistFailureStillFailsAuth(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	seedActiveUser(t, store, "s3cret-pass")
	store.updateErr = errors.New("write timeout")

	_, err := engine.Login(context.Background(), "alice", "wrong-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	// The increment could not be persisted; the record is unchanged.
	if got := store.get(t, "u-1").BadLoginAttempts; got != 0 {
		t.Errorf("counter = %d, want 0", got)
	}
}

func TestLoginConcurrentFailuresCountExactly(t *testing.T) {
	cfg := testConfig()
	cfg.Login.MaxBadLogins = 100

	store := newMockStore()
	engine := newTestEngine(t, cfg, store, nil)
	seedActiveUser(t, store, "s3cret-pass")

	const attempts = 8
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, _ = engine.Login(context.Background(), "alice", "wrong-pass")
		}()
	}
	wg.Wait()

	if got := store.get(t, "u-1").BadLoginAttempts; got != attempts {
		t.Errorf("counter = %d, want %d", got, attempts)
	}
}

func TestLoginMetrics(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	seedActiveUser(t, store, "s3cret-pass")

	_, _ = engine.Login(context.Background(), "alice", "wrong-pass")
	_, _ = engine.Login(context.Background(), "alice", "s3cret-pass")

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricLoginFailure]; got != 1 {
		t.Errorf("failure metric = %d, want 1", got)
	}
	if got := snap.Counters[MetricLoginSuccess]; got != 1 {
		t.Errorf("success metric = %d, want 1", got)
	}
}
