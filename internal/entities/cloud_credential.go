package entities

import (
	"time"

	"gorm.io/gorm"
)

// ProviderKind identifies a cloud storage vendor.
type ProviderKind string

const (
	ProviderKindDropbox ProviderKind = "dropbox"
	ProviderKindDrive   ProviderKind = "drive"
)

// ValidProviderKind reports whether s names a supported provider.
func ValidProviderKind(s ProviderKind) bool {
	switch s {
	case ProviderKindDropbox, ProviderKindDrive:
		return true
	}
	return false
}

// CloudCredential stores encrypted OAuth tokens for a cloud storage provider.
type CloudCredential struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AccountID uint         `gorm:"not null;uniqueIndex:idx_account_provider" json:"account_id"`
	Provider  ProviderKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_account_provider" json:"provider"`

	// AccessToken is stored as base64-encoded AES-256-GCM ciphertext.
	AccessToken string `gorm:"type:text;not null" json:"-"`

	// RefreshToken is stored as base64-encoded AES-256-GCM ciphertext.
	RefreshToken string `gorm:"type:text" json:"-"`

	TokenType string     `gorm:"type:varchar(50);default:Bearer" json:"token_type"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scope     string     `gorm:"type:text" json:"scope,omitempty"`

	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

func (CloudCredential) TableName() string {
	return "cloud_credentials"
}

// IsExpired checks if the access token has expired.
func (c *CloudCredential) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	// Consider expired if less than 5 minutes remaining
	return time.Now().Add(5 * time.Minute).After(*c.ExpiresAt)
}

// DecryptedCredential holds the decrypted token values for use in memory.
// Never stored directly in the database.
type DecryptedCredential struct {
	AccountID    uint
	Provider     ProviderKind
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
}
