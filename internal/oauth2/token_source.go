package oauth2

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

// TokenSource provides access tokens with automatic refresh.
type TokenSource interface {
	// Token returns a valid access token, refreshing if necessary.
	Token(ctx context.Context) (string, error)
}

// StoredTokenSource serves tokens from the credential store, refreshing
// through the provider when they approach expiry.
type StoredTokenSource struct {
	mu sync.Mutex

	provider  Provider
	store     *tokenstore.Store
	accountID uint

	accessToken   string
	expiresAt     *time.Time
	refreshMargin time.Duration
}

func NewStoredTokenSource(provider Provider, store *tokenstore.Store, accountID uint) *StoredTokenSource {
	return &StoredTokenSource{
		provider:      provider,
		store:         store,
		accountID:     accountID,
		refreshMargin: 5 * time.Minute,
	}
}

func (s *StoredTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && !s.expiringSoon() {
		return s.accessToken, nil
	}

	cred, err := s.store.Get(s.accountID, s.provider.Kind())
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", fmt.Errorf("%w: provider %s, account %d", ErrCredentialNotFound, s.provider.Kind(), s.accountID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	s.accessToken = cred.AccessToken
	s.expiresAt = cred.ExpiresAt

	if s.expiringSoon() {
		if cred.RefreshToken == "" {
			return "", ErrNoRefreshToken
		}
		if err := s.refreshLocked(ctx, cred.RefreshToken); err != nil {
			return "", fmt.Errorf("failed to refresh token: %w", err)
		}
	}

	_ = s.store.TouchLastUsed(s.accountID, s.provider.Kind())

	return s.accessToken, nil
}

func (s *StoredTokenSource) refreshLocked(ctx context.Context, refreshToken string) error {
	resp, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	newRefresh := resp.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken // provider did not rotate it
	}

	expiresAt := resp.ExpiresAt()
	if err := s.store.UpdateAfterRefresh(s.accountID, s.provider.Kind(), resp.AccessToken, newRefresh, expiresAt); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.expiresAt = expiresAt
	return nil
}

func (s *StoredTokenSource) expiringSoon() bool {
	if s.expiresAt == nil {
		return false
	}
	return time.Now().Add(s.refreshMargin).After(*s.expiresAt)
}

// StaticTokenSource serves a fixed token; used in tests.
type StaticTokenSource struct {
	AccessToken string
}

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrCredentialNotFound
	}
	return s.AccessToken, nil
}
