// Package authcore provides an embeddable authentication and session engine
// with TOTP-based multi-factor authentication, JWT access tokens, rotating
// refresh tokens, and Redis-backed session lifecycle control.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, MFASetup, AuthResult, etc.). Credential
// storage is consumed through the [UserStore] interface; a Redis reference
// implementation lives in the userstore sub-package. Token signing, TOTP
// verification, and session persistence live in the token, totp, and session
// sub-packages.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or encoding details in its
//     public API.
//   - Return a user-shaped value that still carries the password hash or the
//     MFA secret; every outbound user crosses through [UserRecord.Public].
//   - Create a session before every required factor has been verified.
package authcore
