package session

// Session is the persisted server-side session record. A session is the unit
// of revocation: deleting it kills every refresh token that points at it.
type Session struct {
	SessionID string
	UserID    string
	UserAgent string

	CreatedAt int64
	ExpiresAt int64
}
