// Package token issues and verifies the two JWT kinds used by the engine:
// short-lived access tokens carrying user and session identity, and
// long-lived refresh tokens carrying session identity only.
//
// Both kinds embed a "typ" claim so a refresh token can never pass access
// verification (or vice versa) even when both are signed with the same key.
// Verification here is purely cryptographic; session existence is the
// Engine's concern.
package token
