// Package auth issues and verifies the bearer tokens used by the API and
// hashes account passwords.
//
// Two token kinds exist, each signed with its own HMAC secret:
//
//	access  - short lived, sent as "Authorization: Bearer <token>"
//	refresh - long lived, persisted server side and exchanged for a new pair
//
// A refresh token is never accepted where an access token is expected (and
// vice versa) because the secrets differ.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/neoori/profile-api/internal/apperror"
)

const issuer = "profile-api"

// ErrInvalidToken is returned for any token that fails verification: bad
// signature, wrong secret, wrong issuer, malformed, or expired.
var ErrInvalidToken = &apperror.AppError{
	Err:     apperror.ErrUnauthorized,
	Message: "Invalid or expired token",
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string
	Email  string
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: JWT secrets must be at least 16 characters")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshTTL is the lifetime given to refresh tokens; callers use it to
// stamp the persisted record's expiry.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) IssueAccessToken(id Identity) (string, error) {
	return s.sign(id, s.accessSecret, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(id Identity) (string, error) {
	return s.sign(id, s.refreshSecret, s.refreshTTL)
}

// IssuePair issues an access token and a refresh token for id.
func (s *TokenService) IssuePair(id Identity) (access, refresh string, err error) {
	access, err = s.IssueAccessToken(id)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.IssueRefreshToken(id)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *TokenService) VerifyAccessToken(token string) (Identity, error) {
	return s.verify(token, s.accessSecret)
}

func (s *TokenService) VerifyRefreshToken(token string) (Identity, error) {
	return s.verify(token, s.refreshSecret)
}

// sign builds an HS256 token. The jti makes every token unique even when two
// are issued for the same user within the same second.
func (s *TokenService) sign(id Identity, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(tokenStr string, secret []byte) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: c.Subject, Email: c.Email}, nil
}
