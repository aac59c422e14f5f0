// Package tokenstore persists cloud-provider credentials encrypted with
// AES-256-GCM. Plaintext tokens never touch storage or logs.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/mealkeeper/mealkeeper/internal/crypto"
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// EnvEncryptionKey is the environment variable holding the base64 key.
const EnvEncryptionKey = "MEALKEEPER_TOKEN_KEY"

// ErrNotFound indicates no credential exists for the account/provider pair.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes encrypted cloud credentials.
type Store struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// New creates a Store over an existing database handle. The encryption
// key is taken from encryptionKey, falling back to the environment.
func New(db *gorm.DB, encryptionKey string) (*Store, error) {
	key := encryptionKey
	if key == "" {
		key = os.Getenv(EnvEncryptionKey)
	}
	if key == "" {
		return nil, fmt.Errorf("no encryption key configured, set %s", EnvEncryptionKey)
	}

	encryptor, err := crypto.NewEncryptorFromBase64(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

// Save encrypts and upserts a credential for (account, provider).
func (s *Store) Save(cred *entities.DecryptedCredential) error {
	encAccess, err := s.encryptor.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := s.encryptor.Encrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	record := &entities.CloudCredential{
		AccountID:    cred.AccountID,
		Provider:     cred.Provider,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		TokenType:    cred.TokenType,
		ExpiresAt:    cred.ExpiresAt,
		Scope:        cred.Scope,
	}

	result := s.db.Where("account_id = ? AND provider = ?", cred.AccountID, cred.Provider).
		Assign(map[string]any{
			"access_token":  encAccess,
			"refresh_token": encRefresh,
			"token_type":    cred.TokenType,
			"expires_at":    cred.ExpiresAt,
			"scope":         cred.Scope,
			"updated_at":    time.Now(),
		}).
		FirstOrCreate(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save credential: %w", result.Error)
	}
	return nil
}

// Get retrieves and decrypts the credential for (account, provider).
func (s *Store) Get(accountID uint, provider entities.ProviderKind) (*entities.DecryptedCredential, error) {
	var record entities.CloudCredential
	err := s.db.Where("account_id = ? AND provider = ?", accountID, provider).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return s.decrypt(&record)
}

// Delete removes the credential for (account, provider).
func (s *Store) Delete(accountID uint, provider entities.ProviderKind) error {
	err := s.db.Where("account_id = ? AND provider = ?", accountID, provider).
		Delete(&entities.CloudCredential{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// UpdateAfterRefresh stores new tokens after a provider refresh. An empty
// refresh token keeps the existing one.
func (s *Store) UpdateAfterRefresh(accountID uint, provider entities.ProviderKind, accessToken, refreshToken string, expiresAt *time.Time) error {
	encAccess, err := s.encryptor.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	updates := map[string]any{
		"access_token":      encAccess,
		"expires_at":        expiresAt,
		"last_refreshed_at": time.Now(),
	}
	if refreshToken != "" {
		encRefresh, err := s.encryptor.Encrypt(refreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		updates["refresh_token"] = encRefresh
	}

	err = s.db.Model(&entities.CloudCredential{}).
		Where("account_id = ? AND provider = ?", accountID, provider).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return nil
}

// TouchLastUsed updates the last_used_at timestamp.
func (s *Store) TouchLastUsed(accountID uint, provider entities.ProviderKind) error {
	now := time.Now()
	return s.db.Model(&entities.CloudCredential{}).
		Where("account_id = ? AND provider = ?", accountID, provider).
		Update("last_used_at", now).Error
}

// HasCredential reports whether a credential exists without decrypting it.
func (s *Store) HasCredential(accountID uint, provider entities.ProviderKind) (bool, error) {
	var count int64
	err := s.db.Model(&entities.CloudCredential{}).
		Where("account_id = ? AND provider = ?", accountID, provider).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) decrypt(record *entities.CloudCredential) (*entities.DecryptedCredential, error) {
	accessToken, err := s.encryptor.Decrypt(record.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := s.encryptor.Decrypt(record.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return &entities.DecryptedCredential{
		AccountID:    record.AccountID,
		Provider:     record.Provider,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    record.TokenType,
		ExpiresAt:    record.ExpiresAt,
		Scope:        record.Scope,
	}, nil
}
