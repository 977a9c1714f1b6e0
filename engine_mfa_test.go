package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	otptotp "github.com/pquerna/otp/totp"
)

func codeFor(t *testing.T, secret string) string {
	t.Helper()

	code, err := otptotp.GenerateCode(secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to generate TOTP code: %v", err)
	}
	return code
}

// enableMFAFor walks the full setup flow for an existing user and returns the
// confirmed secret.
func enableMFAFor(t *testing.T, engine *Engine, userID string) string {
	t.Helper()
	ctx := context.Background()

	setup, err := engine.BeginMFASetup(ctx, userID)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	state, err := engine.ConfirmMFASetup(ctx, userID, codeFor(t, setup.Secret), setup.Secret)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !state.Enabled {
		t.Fatal("expected MFA enabled after confirm")
	}

	return setup.Secret
}

/*
====================================
SETUP
====================================
*/

func TestBeginMFASetupReturnsStableSecret(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")

	first, err := engine.BeginMFASetup(ctx, user.UserID)
	if err != nil {
		t.Fatalf("first setup failed: %v", err)
	}
	if first.Secret == "" {
		t.Fatal("expected a secret")
	}
	if !strings.HasPrefix(first.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI: %q", first.ProvisioningURI)
	}

	second, err := engine.BeginMFASetup(ctx, user.UserID)
	if err != nil {
		t.Fatalf("second setup failed: %v", err)
	}
	if second.Secret != first.Secret {
		t.Fatal("repeated setup must return the same secret")
	}
	if second.ProvisioningURI != first.ProvisioningURI {
		t.Fatal("repeated setup must return the same URI")
	}
}

func TestBeginMFASetupAlreadyEnabled(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")
	enableMFAFor(t, engine, user.UserID)

	setup, err := engine.BeginMFASetup(ctx, user.UserID)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if !setup.Enabled {
		t.Fatal("expected enabled state")
	}
	if setup.Secret != "" || setup.ProvisioningURI != "" {
		t.Fatal("no secret material may leak for an enabled user")
	}
}

func TestBeginMFASetupRequiresUser(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.BeginMFASetup(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty user: expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.BeginMFASetup(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: expected ErrUserNotFound, got %v", err)
	}
}

func TestConfirmMFASetupEnables(t *testing.T) {
	engine, store := newTestEngine(t)

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")
	secret := enableMFAFor(t, engine, user.UserID)

	stored := store.get(user.UserID)
	if !stored.MFA.Enabled {
		t.Fatal("enabled flag not persisted")
	}
	if stored.MFA.Secret != secret {
		t.Fatal("secret not persisted")
	}
}

func TestConfirmMFASetupReplayIsNoOp(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")
	secret := enableMFAFor(t, engine, user.UserID)

	state, err := engine.ConfirmMFASetup(ctx, user.UserID, codeFor(t, secret), secret)
	if err != nil {
		t.Fatalf("replayed confirm failed: %v", err)
	}
	if !state.Enabled {
		t.Fatal("expected enabled state on replay")
	}
}

func TestConfirmMFASetupWrongCode(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")

	setup, err := engine.BeginMFASetup(ctx, user.UserID)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err = engine.ConfirmMFASetup(ctx, user.UserID, "000000", setup.Secret)
	if !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid, got %v", err)
	}

	if store.get(user.UserID).MFA.Enabled {
		t.Fatal("failed confirm must not enable MFA")
	}
}

/*
====================================
REVOCATION
====================================
*/

func TestRevokeMFAClearsSecret(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")
	enableMFAFor(t, engine, user.UserID)

	state, err := engine.RevokeMFA(ctx, user.UserID)
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if state.Enabled {
		t.Fatal("expected disabled state")
	}

	stored := store.get(user.UserID)
	if stored.MFA.Enabled || stored.MFA.Secret != "" {
		t.Fatalf("revoke must clear both fields, got %+v", stored.MFA)
	}

	// The next login goes straight through without a challenge.
	result, err := engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login after revoke failed: %v", err)
	}
	if result.MFARequired {
		t.Fatal("revoked user must not be challenged")
	}
}

func TestRevokeMFANotEnabledIsNoOp(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")

	state, err := engine.RevokeMFA(ctx, user.UserID)
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if state.Enabled {
		t.Fatal("expected disabled state")
	}
}

/*
====================================
LOGIN CHALLENGE
====================================
*/

func TestChallengeMFALoginCompletesLogin(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")
	secret := enableMFAFor(t, engine, user.UserID)

	paused, err := engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !paused.MFARequired {
		t.Fatal("expected paused login")
	}

	result, err := engine.ChallengeMFALogin(ctx, codeFor(t, secret), "alice@example.com")
	if err != nil {
		t.Fatalf("challenge failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" || result.SessionID == "" {
		t.Fatal("challenge must complete with a session and both tokens")
	}

	auth, err := engine.ValidateAccess(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("access token did not validate: %v", err)
	}
	if auth.SessionID != result.SessionID || auth.UserID != user.UserID {
		t.Fatalf("claims mismatch: got %+v", auth)
	}
}

func TestChallengeMFALoginWrongCode(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")
	enableMFAFor(t, engine, user.UserID)

	_, err := engine.ChallengeMFALogin(ctx, "000000", "alice@example.com")
	if !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid, got %v", err)
	}

	ids, err := engine.sessions.ActiveSessionIDs(ctx, user.UserID)
	if err != nil {
		t.Fatalf("session index lookup failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatal("failed challenge must not create a session")
	}
}

func TestChallengeMFALoginUnknownEmail(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ChallengeMFALogin(context.Background(), "123456", "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChallengeMFALoginWithoutMFA(t *testing.T) {
	engine, store := newTestEngine(t)

	seedUser(t, engine, store, "alice@example.com", "correct horse battery")

	_, err := engine.ChallengeMFALogin(context.Background(), "123456", "alice@example.com")
	if !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("expected ErrMFANotEnabled, got %v", err)
	}
}

// A provisioned but unconfirmed secret still qualifies for the challenge, so
// an interrupted setup flow cannot lock the user out of completing it.
func TestChallengeMFALoginWithPendingSecret(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, store, "alice@example.com", "correct horse battery")

	setup, err := engine.BeginMFASetup(ctx, user.UserID)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err = engine.ChallengeMFALogin(ctx, codeFor(t, setup.Secret), "alice@example.com")
	if err != nil {
		t.Fatalf("challenge with pending secret failed: %v", err)
	}
}
