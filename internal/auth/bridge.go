package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Bridge token lifetimes. Background token sync runs unattended and gets the
// long profile; interactive calls from the frontend get the short one.
const (
	BridgeTTLSync        = 30 * 24 * time.Hour
	BridgeTTLInteractive = 24 * time.Hour
)

const (
	bridgeIssuer = "tubelink"
	bridgeSource = "session"
)

// BridgeClaims is what the downstream service reads from a bridge token.
type BridgeClaims struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"`
	jwt.RegisteredClaims
}

// UserID parses the subject.
func (c *BridgeClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// BridgeService mints stateless HS256 tokens that let a second backend act
// on a user's behalf. Tokens cannot be revoked before expiry, so the
// downstream must still check that the subject has a live connection.
type BridgeService struct {
	secret []byte
	now    func() time.Time
}

func NewBridgeService(secret string) *BridgeService {
	return &BridgeService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (s *BridgeService) Mint(user *models.User, ttl time.Duration) (string, error) {
	if user == nil {
		return "", errors.New("bridge: nil user")
	}
	if ttl <= 0 {
		ttl = BridgeTTLInteractive
	}

	now := s.now()
	claims := BridgeClaims{
		Email:  user.Email,
		Name:   user.Name,
		Source: bridgeSource,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    bridgeIssuer,
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *BridgeService) Validate(tokenString string) (*BridgeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &BridgeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(bridgeIssuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*BridgeClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
