package totp

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func newTestEngine() *Engine {
	return New(Config{
		Issuer: "authcore-test",
		Digits: 6,
		Period: 30,
		Skew:   1,
	})
}

func TestGenerateSecret(t *testing.T) {
	e := newTestEngine()

	first, err := e.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if first == "" {
		t.Fatal("expected a secret")
	}

	second, err := e.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if second == first {
		t.Fatal("secrets must be random")
	}
}

func TestGenerateSecretRequiresAccount(t *testing.T) {
	e := newTestEngine()

	if _, err := e.GenerateSecret(""); err == nil {
		t.Fatal("expected error for empty account name")
	}
}

func TestVerifyCode(t *testing.T) {
	e := newTestEngine()

	secret, err := e.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to mint code: %v", err)
	}

	if !e.VerifyCode(secret, code) {
		t.Fatal("valid code rejected")
	}
	if e.VerifyCode(secret, "000000") {
		t.Fatal("wrong code accepted")
	}
	if e.VerifyCode("", code) {
		t.Fatal("empty secret accepted")
	}
	if e.VerifyCode(secret, "") {
		t.Fatal("empty code accepted")
	}
	if e.VerifyCode("not base32!!", code) {
		t.Fatal("malformed secret accepted")
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	e := newTestEngine()

	secret, err := e.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	// One period behind stays inside the skew window; three periods is out.
	previous, err := totp.GenerateCode(secret, time.Now().UTC().Add(-30*time.Second))
	if err != nil {
		t.Fatalf("failed to mint code: %v", err)
	}
	if !e.VerifyCode(secret, previous) {
		t.Fatal("previous-step code rejected inside skew window")
	}

	stale, err := totp.GenerateCode(secret, time.Now().UTC().Add(-90*time.Second))
	if err != nil {
		t.Fatalf("failed to mint code: %v", err)
	}
	if e.VerifyCode(secret, stale) {
		t.Fatal("stale code accepted outside skew window")
	}
}

func TestProvisionURI(t *testing.T) {
	e := newTestEngine()

	uri := e.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@example.com")

	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected scheme: %q", uri)
	}
	if !strings.Contains(uri, "secret=JBSWY3DPEHPK3PXP") {
		t.Fatalf("secret missing from URI: %q", uri)
	}
	if !strings.Contains(uri, "issuer=authcore-test") {
		t.Fatalf("issuer missing from URI: %q", uri)
	}

	// The URI must be stable for repeated setup calls.
	if again := e.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@example.com"); again != uri {
		t.Fatalf("URI not deterministic: %q vs %q", uri, again)
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		t.Fatalf("URI does not parse back: %v", err)
	}
	if key.Secret() != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("parsed secret mismatch: %q", key.Secret())
	}
	if key.Issuer() != "authcore-test" {
		t.Fatalf("parsed issuer mismatch: %q", key.Issuer())
	}
}

func TestQRCode(t *testing.T) {
	e := newTestEngine()

	secret, err := e.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	png, err := e.QRCode(e.ProvisionURI(secret, "alice@example.com"), 0)
	if err != nil {
		t.Fatalf("QR render failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("output is not a PNG")
	}
}

func TestQRCodeRejectsBadURI(t *testing.T) {
	e := newTestEngine()

	if _, err := e.QRCode("://not-a-uri", 128); err == nil {
		t.Fatal("expected error for malformed URI")
	}
}

func TestNewFillsDefaults(t *testing.T) {
	e := New(Config{Issuer: "authcore-test"})

	if e.config.Digits != 6 {
		t.Fatalf("default digits: got %d want 6", e.config.Digits)
	}
	if e.config.Period != 30 {
		t.Fatalf("default period: got %d want 30", e.config.Period)
	}
}

func TestEightDigitCodes(t *testing.T) {
	e := New(Config{
		Issuer: "authcore-test",
		Digits: 8,
		Period: 30,
		Skew:   1,
	})

	secret, err := e.GenerateSecret("alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	code, err := totp.GenerateCodeCustom(secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsEight,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("failed to mint code: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("code length: got %d want 8", len(code))
	}
	if !e.VerifyCode(secret, code) {
		t.Fatal("valid 8-digit code rejected")
	}
}
