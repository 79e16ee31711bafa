package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/neoori/profile-api/internal/apperror"
	"github.com/neoori/profile-api/internal/model"
	"github.com/neoori/profile-api/internal/repository"
)

var _ repository.AccountRepository = (*AccountDB)(nil)

// accountColumns are the columns Update writes. id and created_at are
// immutable; last_login_at has its own method.
var accountColumns = []string{
	"email", "password_hash", "name", "avatar", "is_active", "email_verified",
	"oauth_provider", "oauth_subject", "profile_id", "updated_at",
}

type AccountDB struct {
	db *gorm.DB
}

// Create assigns an ID when the caller did not and inserts the account.
// A duplicate email (or OAuth identity) is reported as a conflict.
func (a *AccountDB) Create(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = xid.New().String()
	}
	if account.OAuthProvider == "" {
		account.OAuthProvider = model.ProviderEmail
	}

	if err := a.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("relational: creating account %s: %w", account.Email, err)
	}
	return nil
}

func (a *AccountDB) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return a.first(ctx, "id = ?", id)
}

func (a *AccountDB) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return a.first(ctx, "email = ?", email)
}

func (a *AccountDB) GetByOAuth(ctx context.Context, provider, subject string) (*model.Account, error) {
	return a.first(ctx, "oauth_provider = ? AND oauth_subject = ?", provider, subject)
}

func (a *AccountDB) first(ctx context.Context, query string, args ...any) (*model.Account, error) {
	var account model.Account
	err := a.db.WithContext(ctx).Where(query, args...).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("account", fmt.Sprint(args...))
		}
		return nil, fmt.Errorf("relational: getting account (%s): %w", query, err)
	}
	return &account, nil
}

func (a *AccountDB) Update(ctx context.Context, account *model.Account) error {
	account.UpdatedAt = time.Now().UTC()

	result := a.db.WithContext(ctx).
		Model(&model.Account{ID: account.ID}).
		Select(accountColumns).
		Updates(account)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("relational: updating account %s: %w", account.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("account", account.ID)
	}
	return nil
}

func (a *AccountDB) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	result := a.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("last_login_at", at.UTC())
	if result.Error != nil {
		return fmt.Errorf("relational: stamping last login for %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("account", id)
	}
	return nil
}
