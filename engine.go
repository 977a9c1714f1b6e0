package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/squeezyhq/authcore/session"
	"github.com/squeezyhq/authcore/token"
	"github.com/squeezyhq/authcore/totp"
)

// Engine is the authentication core. It is assembled through [Builder.Build]
// and immutable afterwards; all methods are safe for concurrent use.
type Engine struct {
	config   Config
	users    UserStore
	hasher   PasswordHasher
	sessions *session.Store
	tokens   *token.Manager
	totp     *totp.Engine
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close drains and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login verifies the password credential for email. When the user has MFA
// enabled the result carries MFARequired with no session or tokens; the
// caller must complete [Engine.ChallengeMFALogin]. Otherwise a session is
// created and both tokens are returned.
//
// Unknown emails and password mismatches both yield [ErrInvalidCredentials]
// so the response does not reveal account existence.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.hasher == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}
	password = ""

	if user.MFA.Enabled {
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditEventMFARequired, true, user.UserID, "", nil, nil)
		return &LoginResult{
			User:        user.Public(),
			MFARequired: true,
		}, nil
	}

	return e.finishLogin(ctx, user)
}

// finishLogin creates the session and mints both tokens. Called only after
// every required factor has been verified.
func (e *Engine) finishLogin(ctx context.Context, user UserRecord) (*LoginResult, error) {
	sessionID := uuid.NewString()
	now := time.Now()
	lifetime := e.sessionLifetime()

	sess := &session.Session{
		SessionID: sessionID,
		UserID:    user.UserID,
		UserAgent: userAgentFromContext(ctx),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	}

	if err := e.sessions.Save(ctx, sess, lifetime); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "session_save_failed",
			}
		})
		return nil, err
	}

	access, err := e.tokens.IssueAccess(user.UserID, sessionID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return nil, err
	}

	refresh, err := e.tokens.IssueRefresh(sessionID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_refresh_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, sessionID, nil, nil)

	return &LoginResult{
		User:         user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
	}, nil
}

/*
====================================
REFRESH
====================================
*/

// Refresh rotates a refresh token. The backing session must still exist: an
// orphaned token yields [ErrSessionNotFound]. An expired refresh token
// additionally destroys its session before returning [ErrTokenExpired], so a
// stolen stale token cannot keep a session alive.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			if claims != nil && claims.SID != "" {
				if delErr := e.sessions.Delete(ctx, claims.SID); delErr == nil {
					e.metricInc(MetricSessionInvalidated)
				}
			}
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailure, false, "", sidFromClaims(claims), ErrTokenExpired, func() map[string]string {
				return map[string]string{
					"reason": "token_expired",
				}
			})
			return nil, ErrTokenExpired
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "token_invalid",
			}
		})
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailure, false, "", claims.SID, ErrSessionNotFound, func() map[string]string {
				return map[string]string{
					"reason": "session_not_found",
				}
			})
			return nil, ErrSessionNotFound
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", claims.SID, err, nil)
		return nil, err
	}

	access, err := e.tokens.IssueAccess(sess.UserID, sess.SessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, sess.UserID, sess.SessionID, err, nil)
		return nil, err
	}

	refresh, err := e.tokens.IssueRefresh(sess.SessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, sess.UserID, sess.SessionID, err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.UserID, sess.SessionID, nil, nil)

	return &RefreshResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
	}, nil
}

func sidFromClaims(claims *token.RefreshClaims) string {
	if claims == nil {
		return ""
	}
	return claims.SID
}

/*
====================================
VALIDATION AND SESSIONS
====================================
*/

// ValidateAccess verifies an access token's signature and expiry and returns
// its claims. No session lookup happens on this path; revocation takes effect
// at the next refresh.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	claims, err := e.tokens.ParseAccess(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	return &AuthResult{
		UserID:    claims.UID,
		SessionID: claims.SID,
	}, nil
}

// FindSession returns the session record for sessionID.
func (e *Engine) FindSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &SessionInfo{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		UserAgent: sess.UserAgent,
		CreatedAt: time.Unix(sess.CreatedAt, 0),
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// Logout invalidates one session. Logging out a session that no longer
// exists is not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	err := e.sessions.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionID, err, nil)
	return err
}

// LogoutAll invalidates every session belonging to userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	err := e.sessions.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}

// sessionLifetime caps the session at the refresh TTL.
func (e *Engine) sessionLifetime() time.Duration {
	lifetime := e.config.Session.AbsoluteLifetime
	if e.config.JWT.RefreshTTL > 0 && e.config.JWT.RefreshTTL < lifetime {
		return e.config.JWT.RefreshTTL
	}
	return lifetime
}
