package authcore

import (
	"context"
	"strings"
	"testing"
)

func TestBuilderRequiresRedis(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithUserStore(newMockUserStore()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis requirement error, got %v", err)
	}
}

func TestBuilderRequiresUserStore(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		Build()
	if err == nil || !strings.Contains(err.Error(), "user store") {
		t.Fatalf("expected user store requirement error, got %v", err)
	}
}

func TestBuilderValidatesConfig(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.TOTP.Issuer = ""

	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(newMockUserStore()).
		Build()
	if err == nil {
		t.Fatal("expected config validation failure")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserStore(newMockUserStore())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second build must fail")
	}
}

func TestBuilderInjectedHasherWins(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()

	hasher := &staticHasher{}
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserStore(store).
		WithHasher(hasher).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")

	result, err := engine.Login(context.Background(), "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login through injected hasher failed: %v", err)
	}
	if result.User.UserID != user.UserID {
		t.Fatalf("wrong user: got %q", result.User.UserID)
	}
	if !hasher.verified {
		t.Fatal("injected hasher was not used")
	}
}

type staticHasher struct {
	verified bool
}

func (h *staticHasher) Hash(plain string) (string, error) {
	return "static:" + plain, nil
}

func (h *staticHasher) Verify(plain, hashed string) (bool, error) {
	h.verified = true
	return hashed == "static:"+plain, nil
}
