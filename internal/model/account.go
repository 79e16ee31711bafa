// Package model defines the records stored by the relational and document
// stores and the shapes returned by the API.
package model

import "time"

const (
	ProviderEmail  = "email"
	ProviderGitHub = "github"
)

// Account is the authentication record kept in the relational store.
//
// PasswordHash is nil for accounts created through OAuth. ProfileID links the
// account to its profile document; it is assigned at registration and may be
// nil for accounts created before profiles existed, in which case the account
// ID is used as the document key.
type Account struct {
	ID            string     `json:"id"            gorm:"primaryKey;size:20"`
	Email         string     `json:"email"         gorm:"uniqueIndex;not null"`
	PasswordHash  *string    `json:"-"`
	Name          string     `json:"name"          gorm:"not null;default:''"`
	Avatar        *string    `json:"avatar"`
	IsActive      bool       `json:"isActive"      gorm:"not null;default:true"`
	EmailVerified bool       `json:"emailVerified" gorm:"not null;default:false"`
	OAuthProvider string     `json:"-"             gorm:"column:oauth_provider;not null;default:'email';uniqueIndex:idx_accounts_oauth"`
	OAuthSubject  *string    `json:"-"             gorm:"column:oauth_subject;uniqueIndex:idx_accounts_oauth"`
	ProfileID     *string    `json:"-"             gorm:"uniqueIndex"`
	LastLoginAt   *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (Account) TableName() string { return "accounts" }

// ProfileKey is the _id of the account's profile document.
func (a *Account) ProfileKey() string {
	if a.ProfileID != nil && *a.ProfileID != "" {
		return *a.ProfileID
	}
	return a.ID
}

// RefreshToken is a persisted refresh token. A token is only honoured while
// its row exists and ExpiresAt is in the future.
type RefreshToken struct {
	ID        string    `gorm:"primaryKey;size:20"`
	AccountID string    `gorm:"size:20;not null;index"`
	Account   *Account  `gorm:"constraint:OnDelete:CASCADE"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair is returned by every operation that authenticates a client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
