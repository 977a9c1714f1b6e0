// Package totp wraps RFC 6238 time-based one-time password generation and
// verification for the second authentication factor.
//
// Secrets are standard base32 strings compatible with common authenticator
// apps. Verification tolerates a configurable number of time steps of clock
// skew either side of now and uses constant-time code comparison underneath.
//
// # What this package must NOT do
//
//   - Persist secrets — storage belongs to the caller's user store.
//   - Decide when a factor is required — that is engine policy.
package totp
