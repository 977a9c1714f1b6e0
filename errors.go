package authcore

import "errors"

var (
	// ErrUnauthorized is returned when an operation requiring an
	// authenticated user is called without one.
	ErrUnauthorized = errors.New("user not authorized")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on a password mismatch. Unknown
	// emails collapse into the same error at login so the response does not
	// reveal account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMFANotEnabled is returned when an MFA challenge targets a user with
	// neither an active flag nor a provisioned secret.
	ErrMFANotEnabled = errors.New("mfa not enabled for this user")
	// ErrMFACodeInvalid is returned when a submitted TOTP code does not
	// verify. A wrong secret and a stale code produce the same error.
	ErrMFACodeInvalid = errors.New("invalid mfa code")
	// ErrSessionNotFound is returned when the session backing a token no
	// longer exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned for tokens failing signature, kind, or
	// structural checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for structurally valid tokens past their
	// expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrValidationFailed is the code reserved for malformed request bodies
	// rejected at the transport boundary before reaching the engine.
	ErrValidationFailed = errors.New("request validation failed")
	// ErrStoreUnavailable wraps persistence failures. Raw backend detail
	// never crosses the boundary.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when the engine was not fully built.
	ErrEngineNotReady = errors.New("engine not initialized")
)

/*
====================================
ERROR CODES
====================================
*/

// ErrorCode returns the stable machine-readable code for a domain error,
// suitable for serializing onto any transport.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrMFANotEnabled):
		return "MFA_NOT_ENABLED"
	case errors.Is(err, ErrMFACodeInvalid):
		return "INVALID_MFA_CODE"
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTokenInvalid):
		return "TOKEN_INVALID"
	case errors.Is(err, ErrValidationFailed):
		return "VALIDATION_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus maps a domain error onto its HTTP status class. Transports that
// are not HTTP can use the same classes (4xx caller fault, 5xx engine fault).
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrMFANotEnabled),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid):
		return 401
	case errors.Is(err, ErrUserNotFound):
		return 404
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMFACodeInvalid),
		errors.Is(err, ErrValidationFailed):
		return 400
	default:
		return 500
	}
}
