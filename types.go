package authcore

import (
	"context"
	"time"
)

// MFAPreference is the per-user second-factor block persisted on the user
// record. A secret must exist before Enabled may become true, and revocation
// clears both fields together so a stale secret can never be silently
// reactivated.
type MFAPreference struct {
	Enabled bool
	Secret  string
}

// UserRecord is the full account record returned by [UserStore]. It carries
// the password hash and the MFA secret and therefore must never be serialized
// outward directly; use [UserRecord.Public].
type UserRecord struct {
	UserID        string
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	MFA           MFAPreference
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the boundary projection of a [UserRecord] with credential
// material stripped.
type PublicUser struct {
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"isEmailVerified"`
	MFAEnabled    bool      `json:"mfaEnabled"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public strips the password hash and MFA secret. Every user-shaped value
// returned by the engine crosses through this projection.
func (u UserRecord) Public() PublicUser {
	return PublicUser{
		UserID:        u.UserID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		MFAEnabled:    u.MFA.Enabled,
		CreatedAt:     u.CreatedAt,
	}
}

// UserStore is the credential-store contract callers must implement to
// integrate authcore with their user database. All mutations are expected to
// be atomic per user record.
//
// ProvisionMFASecret must be a conditional write: it persists secret only if
// the user has no secret yet and returns whichever secret ended up stored.
// Concurrent setup calls for the same user must converge on one value.
//
// DisableMFA must clear the secret and the enabled flag in a single atomic
// update — never one without the other.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, userID string) (UserRecord, error)
	Save(ctx context.Context, user UserRecord) error
	ProvisionMFASecret(ctx context.Context, userID, secret string) (string, error)
	EnableMFA(ctx context.Context, userID string) error
	DisableMFA(ctx context.Context, userID string) error
}

// PasswordHasher is the one-way credential hash contract. Verify must run in
// constant time with respect to the hash contents. It is used only for
// password credentials, never for MFA secrets.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) (bool, error)
}

// LoginResult is returned by [Engine.Login] and [Engine.ChallengeMFALogin].
// When MFARequired is set the login is paused before any session or token
// exists; the caller must complete the challenge via ChallengeMFALogin.
type LoginResult struct {
	User         PublicUser
	AccessToken  string
	RefreshToken string
	SessionID    string

	MFARequired bool
}

// MFASetup is returned by [Engine.BeginMFASetup]. The secret and
// provisioning URI are stable across repeated setup calls until confirmed or
// revoked.
type MFASetup struct {
	Message         string
	Secret          string
	ProvisioningURI string
	Enabled         bool
}

// MFAState is the post-operation preference snapshot returned by
// [Engine.ConfirmMFASetup] and [Engine.RevokeMFA].
type MFAState struct {
	Message string
	Enabled bool
}

// AuthResult is returned by [Engine.ValidateAccess]. It carries the claims of
// a verified access token; session existence is not checked on this path.
type AuthResult struct {
	UserID    string
	SessionID string
}

// RefreshResult is returned by [Engine.Refresh] after a successful rotation.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// SessionInfo is the read-only session view returned by [Engine.FindSession].
type SessionInfo struct {
	SessionID string
	UserID    string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}
