package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/pkg/crypto"
)

var (
	ErrInvalidCode         = errors.New("invalid or expired code")
	ErrVerificationExpired = errors.New("verification has expired")
)

const (
	OTPLength        = 6
	OTPTTL           = 10 * time.Minute
	PasswordResetTTL = time.Hour
)

// Mailer delivers plain-text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, string, string, string) error { return nil }

func generateOTP() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// RequestEmailVerification issues a new OTP. Older codes for the same email
// are deleted.
func (s *Service) RequestEmailVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	if err := s.store.ReplaceVerification(ctx, &models.Verification{
		Identifier: user.Email,
		Value:      code,
		Purpose:    models.PurposeEmailOTP,
		ExpiresAt:  time.Now().Add(OTPTTL),
	}); err != nil {
		return fmt.Errorf("storing verification: %w", err)
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(OTPTTL.Minutes()))
	if err := s.mailer.Send(ctx, user.Email, "Verify your email", body); err != nil {
		return fmt.Errorf("sending verification mail: %w", err)
	}
	return nil
}

func (s *Service) ConfirmEmailVerification(ctx context.Context, userID uuid.UUID, code string, meta RequestMeta) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	v, err := s.store.FindVerification(ctx, models.PurposeEmailOTP, user.Email, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	if !time.Now().Before(v.ExpiresAt) {
		_ = s.store.DeleteVerification(ctx, v.ID)
		return ErrInvalidCode
	}

	if err := s.store.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	if err := s.store.DeleteVerification(ctx, v.ID); err != nil {
		s.logger.Warn("deleting used verification", "error", err)
	}

	s.audit.Record(ctx, &user.ID, AuditEmailVerified, nil, meta)
	return nil
}

// RequestPasswordReset mails a reset token. Only its digest is stored.
// Unknown emails succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := crypto.GenerateToken(32)
	if err != nil {
		return err
	}

	if err := s.store.CreateVerification(ctx, &models.Verification{
		Identifier: user.Email,
		Value:      s.sessions.digest(token),
		Purpose:    models.PurposePasswordReset,
		ExpiresAt:  time.Now().Add(PasswordResetTTL),
	}); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	body := fmt.Sprintf("Use this token to reset your password: %s\nIt expires in one hour.", token)
	if err := s.mailer.Send(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("sending reset mail: %w", err)
	}
	return nil
}

// ResetPassword sets a new primary password. Reset tokens are checked for
// expiry only.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	v, err := s.store.FindVerification(ctx, models.PurposePasswordReset, "", s.sessions.digest(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	if !time.Now().Before(v.ExpiresAt) {
		return ErrVerificationExpired
	}

	user, err := s.store.GetUserByEmail(ctx, v.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetCredentialPassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.store.DeleteVerification(ctx, v.ID); err != nil {
		s.logger.Warn("deleting used reset token", "error", err)
	}
	if _, err := s.store.DeleteUserSessions(ctx, user.ID); err != nil {
		s.logger.Warn("revoking sessions after reset", "user_id", user.ID, "error", err)
	}

	s.audit.Record(ctx, &user.ID, AuditPasswordReset, nil, meta)
	return nil
}
