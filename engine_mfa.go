package authcore

import (
	"context"
	"errors"
)

/*
====================================
MFA SETUP
====================================
*/

// BeginMFASetup provisions a TOTP secret for userID and returns it with the
// otpauth URI. The operation is idempotent: repeated calls return the same
// secret until it is confirmed or revoked, even under concurrent invocation.
// For a user with MFA already enabled it is a no-op reporting the enabled
// state.
func (e *Engine) BeginMFASetup(ctx context.Context, userID string) (*MFASetup, error) {
	if e == nil || e.users == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.MFA.Enabled {
		return &MFASetup{
			Message: "MFA is already enabled",
			Enabled: true,
		}, nil
	}

	secret, err := e.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	// The store resolves concurrent setups: whichever secret lands first
	// wins, and every caller gets the winner back.
	stored, err := e.users.ProvisionMFASecret(ctx, userID, secret)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricMFASetupRequested)
	e.emitAudit(ctx, auditEventMFASetupRequested, true, userID, "", nil, nil)

	return &MFASetup{
		Message:         "Scan the QR code or use the setup key",
		Secret:          stored,
		ProvisioningURI: e.totp.ProvisionURI(stored, user.Email),
	}, nil
}

// ConfirmMFASetup verifies code against the pending secret and flips MFA on.
// Confirming an already-enabled user is a no-op reporting the enabled state.
func (e *Engine) ConfirmMFASetup(ctx context.Context, userID, code, secret string) (*MFAState, error) {
	if e == nil || e.users == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.MFA.Enabled {
		return &MFAState{
			Message: "MFA is already enabled",
			Enabled: true,
		}, nil
	}

	if !e.totp.VerifyCode(secret, code) {
		e.metricInc(MetricMFAChallengeFailure)
		e.emitAudit(ctx, auditEventMFAChallengeFailure, false, userID, "", ErrMFACodeInvalid, func() map[string]string {
			return map[string]string{
				"phase": "setup_confirm",
			}
		})
		return nil, ErrMFACodeInvalid
	}

	user.MFA.Secret = secret
	user.MFA.Enabled = false
	if err := e.users.Save(ctx, user); err != nil {
		return nil, err
	}
	if err := e.users.EnableMFA(ctx, userID); err != nil {
		return nil, err
	}

	e.metricInc(MetricMFAEnabled)
	e.emitAudit(ctx, auditEventMFAEnabled, true, userID, "", nil, nil)

	return &MFAState{
		Message: "MFA setup completed successfully",
		Enabled: true,
	}, nil
}

// RevokeMFA turns MFA off and discards the secret in one atomic update.
// Revoking a user without MFA enabled is a no-op reporting the disabled
// state. Existing sessions stay valid; revocation changes future logins only.
func (e *Engine) RevokeMFA(ctx context.Context, userID string) (*MFAState, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.MFA.Enabled {
		return &MFAState{
			Message: "MFA is not enabled",
			Enabled: false,
		}, nil
	}

	if err := e.users.DisableMFA(ctx, userID); err != nil {
		return nil, err
	}

	e.metricInc(MetricMFARevoked)
	e.emitAudit(ctx, auditEventMFARevoked, true, userID, "", nil, nil)

	return &MFAState{
		Message: "MFA revoke successful",
		Enabled: false,
	}, nil
}

/*
====================================
MFA LOGIN CHALLENGE
====================================
*/

// ChallengeMFALogin completes a login paused on MFA. The caller is identified
// by email because no session exists yet at this point. On success the
// session is created and both tokens are returned, exactly as a non-MFA login
// would have done.
//
// Unlike [Engine.Login], an unknown email yields [ErrUserNotFound]: reaching
// the challenge step already implies the account exists.
func (e *Engine) ChallengeMFALogin(ctx context.Context, code, email string) (*LoginResult, error) {
	if e == nil || e.users == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricMFAChallengeFailure)
			e.emitAudit(ctx, auditEventMFAChallengeFailure, false, "", "", ErrUserNotFound, nil)
		}
		return nil, err
	}

	// A user qualifies for the challenge when MFA is enabled or a secret is
	// at least provisioned; with neither there is nothing to verify against.
	if !user.MFA.Enabled && user.MFA.Secret == "" {
		e.metricInc(MetricMFAChallengeFailure)
		e.emitAudit(ctx, auditEventMFAChallengeFailure, false, user.UserID, "", ErrMFANotEnabled, nil)
		return nil, ErrMFANotEnabled
	}

	if !e.totp.VerifyCode(user.MFA.Secret, code) {
		e.metricInc(MetricMFAChallengeFailure)
		e.emitAudit(ctx, auditEventMFAChallengeFailure, false, user.UserID, "", ErrMFACodeInvalid, nil)
		return nil, ErrMFACodeInvalid
	}

	result, err := e.finishLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricMFAChallengeSuccess)
	e.emitAudit(ctx, auditEventMFAChallengeSuccess, true, user.UserID, result.SessionID, nil, nil)

	return result, nil
}
