// Package oauth2 handles authorization flows and token lifetime for the
// cloud storage providers.
package oauth2

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// TokenResponse contains tokens returned from an OAuth2 provider.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // seconds until expiry
	Scope        string
	AccountRef   string // provider-side account identifier
}

// ExpiresAt calculates the absolute expiry time from ExpiresIn.
func (t *TokenResponse) ExpiresAt() *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	exp := time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	return &exp
}

// Provider is one OAuth2 vendor integration.
type Provider interface {
	// Kind returns the provider identifier.
	Kind() entities.ProviderKind

	// BuildAuthURL constructs the authorization URL. Returns the URL, the
	// PKCE code verifier and the CSRF state parameter.
	BuildAuthURL(redirectURL string) (authURL, codeVerifier, state string, err error)

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*TokenResponse, error)

	// RefreshToken exchanges a refresh token for a new access token.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Registry holds the registered OAuth2 providers keyed by kind.
type Registry struct {
	mu        sync.RWMutex
	providers map[entities.ProviderKind]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[entities.ProviderKind]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

func (r *Registry) Get(kind entities.ProviderKind) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, kind)
	}
	return p, nil
}

func (r *Registry) Kinds() []entities.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]entities.ProviderKind, 0, len(r.providers))
	for kind := range r.providers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// GenerateState produces a random CSRF state parameter.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateCodeVerifier produces a PKCE code verifier.
func GenerateCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CodeChallenge derives the S256 challenge for a verifier.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
