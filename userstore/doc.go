// Package userstore provides a Redis-backed reference implementation of the
// authcore UserStore contract.
//
// Each user lives in one Redis hash keyed by ID, with a separate key mapping
// email to ID for login lookups. Hash-field writes give the per-user
// atomicity the contract demands: MFA secret provisioning is a Lua
// claim-if-absent so concurrent setups converge on a single secret, and
// revocation clears the secret and the enabled flag in one transaction.
//
// Any database can replace this package by implementing the same interface.
package userstore
