// Package session provides Redis-backed session persistence with a compact
// binary encoding for authentication hot paths.
//
// Each session is stored under its own key with a TTL matching the session
// lifetime, and every user carries a set of their session IDs so logout-all
// stays O(sessions of one user).
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does not interpret tokens or enforce authentication policy — those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import the root package or token (no upward imports).
//   - Store plaintext credentials or TOTP secrets in [Session] fields.
package session
