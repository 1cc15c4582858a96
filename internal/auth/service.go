package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/store"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

type Service struct {
	store    *store.Store
	sessions *SessionManager
	audit    *AuditLogger
	mailer   Mailer
	logger   *slog.Logger

	revokeDelegationOnRemove bool
	delegationCost           int

	decoyOnce sync.Once
	decoyHash string
}

type Options struct {
	// RevokeDelegationOnRemove deletes live delegation sessions when the
	// delegation password is removed.
	RevokeDelegationOnRemove bool
	// DelegationCost overrides the bcrypt cost for delegation passwords.
	DelegationCost int
	Mailer         Mailer
	Logger         *slog.Logger
}

func NewService(s *store.Store, sessions *SessionManager, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = nopMailer{}
	}
	cost := opts.DelegationCost
	if cost == 0 {
		cost = DelegationPasswordCost
	}
	return &Service{
		store:                    s,
		sessions:                 sessions,
		audit:                    NewAuditLogger(s, logger),
		mailer:                   mailer,
		logger:                   logger,
		revokeDelegationOnRemove: opts.RevokeDelegationOnRemove,
		delegationCost:           cost,
	}
}

func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Session *Session     `json:"-"`
}

func newAuthResponse(issued *IssuedSession) *AuthResponse {
	return &AuthResponse{
		Token:   issued.Token,
		User:    issued.Session.User,
		Session: issued.Session,
	}
}

func (s *Service) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (*AuthResponse, error) {
	if len(input.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.store.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email: input.Email,
		Name:  input.Name,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	if err := s.store.SetCredentialPassword(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("creating credential account: %w", err)
	}

	issued, err := s.sessions.Issue(ctx, user, OwnerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, AuditRegister, nil, meta)
	return newAuthResponse(issued), nil
}

func (s *Service) Login(ctx context.Context, input LoginInput, meta RequestMeta) (*AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hash, err := s.store.CredentialPasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(input.Password, hash) {
		return nil, ErrInvalidCredentials
	}

	issued, err := s.sessions.Issue(ctx, user, OwnerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, AuditLogin, nil, meta)
	return newAuthResponse(issued), nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// OAuthIdentity is the profile and grant returned by a completed Google
// sign-in.
type OAuthIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Image         string
	Tokens        store.ProviderTokens
}

// LoginWithGoogle finds or creates the user for the identity, links the
// Google account and issues an owner session.
func (s *Service) LoginWithGoogle(ctx context.Context, identity OAuthIdentity, meta RequestMeta) (*AuthResponse, error) {
	if identity.Email == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user = &models.User{
			Email:         identity.Email,
			Name:          identity.Name,
			EmailVerified: identity.EmailVerified,
		}
		if identity.Image != "" {
			image := identity.Image
			user.Image = &image
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("creating user: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if !identity.EmailVerified {
			if err := s.checkLinkedSubject(ctx, user.ID, identity.Subject); err != nil {
				return nil, err
			}
		} else if !user.EmailVerified {
			if err := s.store.MarkEmailVerified(ctx, user.ID); err != nil {
				return nil, err
			}
			user.EmailVerified = true
		}
	}

	tokens := identity.Tokens
	tokens.UserID = user.ID
	tokens.AccountID = identity.Subject
	if err := s.store.UpsertProviderAccount(ctx, models.ProviderGoogle, tokens); err != nil {
		return nil, fmt.Errorf("linking google account: %w", err)
	}

	issued, err := s.sessions.Issue(ctx, user, OwnerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, AuditGoogleLogin, nil, meta)
	return newAuthResponse(issued), nil
}

// checkLinkedSubject lets an unverified Google email sign in only to the
// account it is already linked to.
func (s *Service) checkLinkedSubject(ctx context.Context, userID uuid.UUID, subject string) error {
	linked, err := s.store.GetProviderTokens(ctx, userID, models.ProviderGoogle)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if linked.AccountID != subject {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
