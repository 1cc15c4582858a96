package auth

import (
	"context"
	"errors"

	"github.com/hugh/tubelink/internal/store"
)

var (
	ErrDelegationNotEnabled    = errors.New("delegation access is not enabled for this account")
	ErrCurrentPasswordRequired = errors.New("current delegation password is required")
	ErrInvalidCurrentPassword  = errors.New("current delegation password is incorrect")
)

// SetDelegationPassword enables or rotates the delegation password. Rotation
// requires the current delegation password.
func (s *Service) SetDelegationPassword(ctx context.Context, sess *Session, newPassword, currentPassword string, meta RequestMeta) error {
	if err := RequireOwner(sess); err != nil {
		return err
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return err
	}

	rotating := user.DelegationEnabled()
	if rotating {
		if currentPassword == "" {
			return ErrCurrentPasswordRequired
		}
		if !CheckPassword(currentPassword, *user.DelegationPasswordHash) {
			return ErrInvalidCurrentPassword
		}
	}

	hash, err := hashPasswordCost(newPassword, s.delegationCost)
	if err != nil {
		return err
	}
	if err := s.store.SetDelegationPasswordHash(ctx, user.ID, &hash); err != nil {
		return err
	}

	s.audit.Record(ctx, &user.ID, AuditDelegationPasswordSet, map[string]interface{}{
		"rotated": rotating,
	}, meta)
	return nil
}

// RemoveDelegationPassword disables the delegation path after verifying the
// current delegation password.
func (s *Service) RemoveDelegationPassword(ctx context.Context, sess *Session, password string, meta RequestMeta) error {
	if err := RequireOwner(sess); err != nil {
		return err
	}

	user, err := s.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if !user.DelegationEnabled() {
		return ErrDelegationNotEnabled
	}
	if !CheckPassword(password, *user.DelegationPasswordHash) {
		return ErrInvalidCurrentPassword
	}

	if err := s.store.SetDelegationPasswordHash(ctx, user.ID, nil); err != nil {
		return err
	}

	var revoked int64
	if s.revokeDelegationOnRemove {
		revoked, err = s.sessions.RevokeDelegation(ctx, user.ID)
		if err != nil {
			// The hash is already gone; remaining sessions age out.
			s.logger.Error("revoking delegation sessions", "user_id", user.ID, "error", err)
		}
	}

	s.audit.Record(ctx, &user.ID, AuditDelegationPasswordDrop, map[string]interface{}{
		"revoked_sessions": revoked,
	}, meta)
	return nil
}

// DelegationLogin signs in with a delegation password and returns a
// restricted, short-lived session. Unknown emails and wrong passwords share
// ErrInvalidCredentials; ErrDelegationNotEnabled is reported separately.
func (s *Service) DelegationLogin(ctx context.Context, email, password string, meta RequestMeta) (*AuthResponse, error) {
	email = store.NormalizeEmail(email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same bcrypt work as a wrong password.
			CheckPassword(password, s.decoy())
			s.audit.Record(ctx, nil, AuditDelegationLoginFailed, map[string]interface{}{
				"email":  email,
				"reason": "unknown_user",
			}, meta)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.DelegationEnabled() {
		return nil, ErrDelegationNotEnabled
	}

	if !CheckPassword(password, *user.DelegationPasswordHash) {
		s.audit.Record(ctx, &user.ID, AuditDelegationLoginFailed, map[string]interface{}{
			"reason": "wrong_password",
		}, meta)
		return nil, ErrInvalidCredentials
	}

	issued, err := s.sessions.Issue(ctx, user, DelegationSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, AuditDelegationLogin, map[string]interface{}{
		"email": user.Email,
	}, meta)
	return newAuthResponse(issued), nil
}

// decoy is a delegation-cost hash that matches no password. It is built on
// first use so tests with a low cost never pay for cost 12.
func (s *Service) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := hashPasswordCost("decoy-delegation-password", s.delegationCost)
		if err != nil {
			s.logger.Error("building decoy hash", "error", err)
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}
