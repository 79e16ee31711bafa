// Package service holds the business rules of the API.
//
//	handler (HTTP) → AuthService    → AccountRepository, RefreshTokenRepository (relational)
//	               ↘ ProfileService → ProfileRepository (document store)
//
// Services never see HTTP types. Errors that should reach the client with a
// specific status are *apperror.AppError values; everything else is wrapped
// with context and ends up as a 500.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neoori/profile-api/internal/apperror"
	"github.com/neoori/profile-api/internal/auth"
	"github.com/neoori/profile-api/internal/model"
	"github.com/neoori/profile-api/internal/repository"
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 6

var (
	// ErrInvalidRefreshToken is returned when a refresh token fails
	// signature or expiry verification.
	ErrInvalidRefreshToken = apperror.Unauthorized("Invalid refresh token")

	// ErrInvalidOrExpiredToken is returned when a correctly signed refresh
	// token has no live record: it was revoked, rotated or has expired.
	ErrInvalidOrExpiredToken = apperror.Unauthorized("Invalid or expired refresh token")

	ErrEmailTaken = apperror.ConflictMessage("User with this email already exists")
)

// AuthService handles accounts, credentials and refresh-token rotation.
type AuthService struct {
	accounts  repository.AccountRepository
	refresh   repository.RefreshTokenRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthService(
	accounts repository.AccountRepository,
	refresh repository.RefreshTokenRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		refresh:   refresh,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles an account with a freshly issued token pair.
type AuthResult struct {
	Account *model.Account
	Tokens  model.TokenPair
	// Created is set when the call created the account.
	Created bool
}

// OAuthIdentity is what an OAuth provider told us about a user.
type OAuthIdentity struct {
	Provider  string
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// Register creates an email/password account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, apperror.ValidationFailed("", "Email, password, and name are required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "Password must be at least 6 characters long")
	}

	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	profileID := uuid.NewString()
	account := &model.Account{
		Email:         email,
		PasswordHash:  &hash,
		Name:          name,
		IsActive:      true,
		OAuthProvider: model.ProviderEmail,
		ProfileID:     &profileID,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("service/auth: creating account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered", slog.String("userID", account.ID))

	result, err := s.signIn(ctx, account)
	if err != nil {
		return nil, err
	}
	result.Created = true
	return result, nil
}

// Login verifies email and password. Every credential failure yields the
// same error so the response does not reveal which emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Email and password are required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if account.PasswordHash == nil {
		return nil, apperror.InvalidCredentials()
	}
	if err := s.passwords.Verify(*account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}
	if !account.IsActive {
		return nil, apperror.AccountDeactivated()
	}

	return s.signIn(ctx, account)
}

// Refresh exchanges a refresh token for a new pair. The consumed token is
// deleted and its successor stored in one transaction, so a token can be
// exchanged at most once.
//
// REFRESH TOKEN ROTATION:
//
//	login    → access A1 (15m) + refresh R1 (7d, stored)
//	refresh  → R1 deleted, R2 stored, returns A2 + R2
//	refresh  → R2 deleted, R3 stored, returns A3 + R3
//	replay R1 → signature is still valid but the row is gone → 401
//
// A valid signature alone is not enough. The stored row is what makes a
// refresh token usable, which is how logout and rotation revoke tokens
// before their JWT expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, apperror.ValidationFailed("refreshToken", "Refresh token is required")
	}

	identity, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return model.TokenPair{}, ErrInvalidRefreshToken
	}

	record, err := s.refresh.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.TokenPair{}, ErrInvalidOrExpiredToken
		}
		return model.TokenPair{}, fmt.Errorf("service/auth: loading refresh token: %w", err)
	}
	if record.AccountID != identity.UserID {
		return model.TokenPair{}, ErrInvalidOrExpiredToken
	}
	if record.Expired(s.now()) {
		if err := s.refresh.DeleteByToken(ctx, refreshToken); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired refresh token", slog.String("error", err.Error()))
		}
		return model.TokenPair{}, ErrInvalidOrExpiredToken
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.TokenPair{}, ErrInvalidOrExpiredToken
		}
		return model.TokenPair{}, fmt.Errorf("service/auth: loading account %s: %w", record.AccountID, err)
	}
	if !account.IsActive {
		return model.TokenPair{}, apperror.AccountDeactivated()
	}

	access, next, err := s.tokens.IssuePair(identityOf(account))
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("service/auth: issuing tokens: %w", err)
	}

	successor := &model.RefreshToken{
		AccountID: account.ID,
		Token:     next,
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}
	if err := s.refresh.Rotate(ctx, refreshToken, successor); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.TokenPair{}, ErrInvalidOrExpiredToken
		}
		return model.TokenPair{}, fmt.Errorf("service/auth: rotating refresh token: %w", err)
	}

	return model.TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout revokes refreshToken. Unknown or empty tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.refresh.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("service/auth: revoking refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) GetByID(ctx context.Context, userID string) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("service/auth: fetching account %s: %w", userID, err)
	}
	return account, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return apperror.ValidationFailed("", "Current password and new password are required")
	}
	if len(next) < MinPasswordLength {
		return apperror.ValidationFailed("newPassword", "New password must be at least 6 characters long")
	}

	account, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if account.PasswordHash == nil {
		return apperror.ValidationFailed("currentPassword", "User does not have a password set")
	}
	if err := s.passwords.Verify(*account.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.ValidationFailed("currentPassword", "Current password is incorrect")
		}
		return fmt.Errorf("service/auth: verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return apperror.ValidationFailed("newPassword", "New password must be 72 bytes or fewer")
	}
	account.PasswordHash = &hash
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("service/auth: storing new password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("userID", userID))
	return nil
}

// UpdateAvatar points the account at a new avatar URL and returns the
// updated account together with the URL it replaced (empty if none).
func (s *AuthService) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*model.Account, string, error) {
	account, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	var previous string
	if account.Avatar != nil {
		previous = *account.Avatar
	}
	account.Avatar = &avatarURL
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, "", fmt.Errorf("service/auth: storing avatar: %w", err)
	}
	return account, previous, nil
}

// LoginOrRegisterOAuth signs in the account linked to an OAuth identity.
// When none is linked yet, an account with the same email is linked to it,
// otherwise a new password-less account is created.
func (s *AuthService) LoginOrRegisterOAuth(ctx context.Context, id OAuthIdentity) (*AuthResult, error) {
	if id.Provider == "" || id.Subject == "" {
		return nil, errors.New("service/auth: OAuth identity needs a provider and a subject")
	}

	account, err := s.accounts.GetByOAuth(ctx, id.Provider, id.Subject)
	if err == nil {
		if !account.IsActive {
			return nil, apperror.AccountDeactivated()
		}
		return s.signIn(ctx, account)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s identity: %w", id.Provider, err)
	}

	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "The provider did not return an email address")
	}

	account, err = s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !account.IsActive {
			return nil, apperror.AccountDeactivated()
		}
		subject := id.Subject
		account.OAuthProvider = id.Provider
		account.OAuthSubject = &subject
		account.EmailVerified = true
		if account.Avatar == nil && id.AvatarURL != "" {
			avatar := id.AvatarURL
			account.Avatar = &avatar
		}
		if err := s.accounts.Update(ctx, account); err != nil {
			return nil, fmt.Errorf("service/auth: linking %s identity: %w", id.Provider, err)
		}
		s.logger.InfoContext(ctx, "linked OAuth identity to existing account",
			slog.String("userID", account.ID),
			slog.String("provider", id.Provider),
		)
		return s.signIn(ctx, account)

	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	subject := id.Subject
	profileID := uuid.NewString()
	account = &model.Account{
		Email:         email,
		Name:          strings.TrimSpace(id.Name),
		IsActive:      true,
		EmailVerified: true,
		OAuthProvider: id.Provider,
		OAuthSubject:  &subject,
		ProfileID:     &profileID,
	}
	if id.AvatarURL != "" {
		avatar := id.AvatarURL
		account.Avatar = &avatar
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("service/auth: creating %s account: %w", id.Provider, err)
	}

	s.logger.InfoContext(ctx, "account registered via OAuth",
		slog.String("userID", account.ID),
		slog.String("provider", id.Provider),
	)

	result, err := s.signIn(ctx, account)
	if err != nil {
		return nil, err
	}
	result.Created = true
	return result, nil
}

// PruneExpiredTokens deletes refresh tokens that can no longer be used.
func (s *AuthService) PruneExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.refresh.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service/auth: pruning refresh tokens: %w", err)
	}
	return n, nil
}

// signIn issues a token pair for account, persists the refresh token and
// stamps the login time.
func (s *AuthService) signIn(ctx context.Context, account *model.Account) (*AuthResult, error) {
	access, refresh, err := s.tokens.IssuePair(identityOf(account))
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing tokens: %w", err)
	}

	now := s.now()
	record := &model.RefreshToken{
		AccountID: account.ID,
		Token:     refresh,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}
	if err := s.refresh.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token: %w", err)
	}

	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("userID", account.ID),
			slog.String("error", err.Error()),
		)
	} else {
		account.LastLoginAt = &now
	}

	return &AuthResult{
		Account: account,
		Tokens:  model.TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}

func identityOf(account *model.Account) auth.Identity {
	return auth.Identity{UserID: account.ID, Email: account.Email}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
