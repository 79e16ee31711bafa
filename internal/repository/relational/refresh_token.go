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

var _ repository.RefreshTokenRepository = (*RefreshTokenDB)(nil)

type RefreshTokenDB struct {
	db *gorm.DB
}

func (r *RefreshTokenDB) Create(ctx context.Context, token *model.RefreshToken) error {
	return create(r.db.WithContext(ctx), token)
}

func create(tx *gorm.DB, token *model.RefreshToken) error {
	if token.ID == "" {
		token.ID = xid.New().String()
	}
	token.ExpiresAt = token.ExpiresAt.UTC()

	if err := tx.Omit("Account").Create(token).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("refresh token already exists")
		}
		return fmt.Errorf("relational: creating refresh token for account %s: %w", token.AccountID, err)
	}
	return nil
}

func (r *RefreshTokenDB) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&rt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundMessage("refresh token not found")
		}
		return nil, fmt.Errorf("relational: getting refresh token: %w", err)
	}
	return &rt, nil
}

func (r *RefreshTokenDB) DeleteByToken(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&model.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("relational: deleting refresh token: %w", err)
	}
	return nil
}

// Rotate consumes one token and stores its successor atomically, so a token
// can be exchanged at most once even under concurrent refresh requests.
func (r *RefreshTokenDB) Rotate(ctx context.Context, consumed string, next *model.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("token = ?", consumed).Delete(&model.RefreshToken{})
		if result.Error != nil {
			return fmt.Errorf("relational: deleting consumed refresh token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NotFoundMessage("refresh token not found")
		}
		return create(tx, next)
	})
}

// DeleteExpired removes every token whose expiry is at or before before and
// returns how many were removed.
func (r *RefreshTokenDB) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", before.UTC()).
		Delete(&model.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("relational: deleting expired refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
