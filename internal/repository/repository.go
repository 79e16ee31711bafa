// Package repository declares the storage contracts the services depend on.
// Implementations live in the relational and mongo subpackages.
//
// Lookups that find nothing return an error wrapping apperror.ErrNotFound;
// writes that hit a unique constraint return one wrapping
// apperror.ErrConflict.
package repository

import (
	"context"
	"time"

	"github.com/neoori/profile-api/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByOAuth(ctx context.Context, provider, subject string) (*model.Account, error)
	// Update persists every mutable column of account.
	Update(ctx context.Context, account *model.Account) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	// DeleteByToken is a no-op when the token does not exist.
	DeleteByToken(ctx context.Context, token string) error
	// Rotate deletes the consumed token and stores next in one transaction.
	// It returns ErrNotFound when consumed was already gone.
	Rotate(ctx context.Context, consumed string, next *model.RefreshToken) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Create(ctx context.Context, profile *model.Profile) error
	// Replace overwrites the whole document matching profile.UserID.
	Replace(ctx context.Context, profile *model.Profile) error
}
