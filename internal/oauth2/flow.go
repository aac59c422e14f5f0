package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/statestore"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

// stateTTL bounds how long an authorization round-trip may take.
const stateTTL = 10 * time.Minute

// FlowHandler drives the web authorization flow for connecting a cloud
// provider to an account. CSRF state lives in the two-tier state store.
type FlowHandler struct {
	registry *Registry
	creds    *tokenstore.Store
	states   statestore.Store
}

func NewFlowHandler(registry *Registry, creds *tokenstore.Store, states statestore.Store) *FlowHandler {
	return &FlowHandler{registry: registry, creds: creds, states: states}
}

type pendingAuth struct {
	AccountID    uint                  `json:"account_id"`
	Provider     entities.ProviderKind `json:"provider"`
	CodeVerifier string                `json:"code_verifier"`
	RedirectURL  string                `json:"redirect_url"`
}

// Start builds the authorization URL for connecting provider to
// accountID and parks the flow context under the CSRF state.
func (h *FlowHandler) Start(accountID uint, kind entities.ProviderKind, redirectURL string) (string, error) {
	provider, err := h.registry.Get(kind)
	if err != nil {
		return "", err
	}

	authURL, codeVerifier, state, err := provider.BuildAuthURL(redirectURL)
	if err != nil {
		return "", fmt.Errorf("failed to build auth URL: %w", err)
	}

	payload, err := json.Marshal(pendingAuth{
		AccountID:    accountID,
		Provider:     kind,
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode flow state: %w", err)
	}

	if err := h.states.Put(state, string(payload), stateTTL); err != nil {
		return "", fmt.Errorf("failed to save flow state: %w", err)
	}

	return authURL, nil
}

// Complete consumes the callback: verifies the CSRF state, exchanges the
// code and stores the encrypted credential.
func (h *FlowHandler) Complete(ctx context.Context, state, code string) (*entities.DecryptedCredential, error) {
	raw, ok := h.states.Take(state)
	if !ok {
		return nil, ErrStateMismatch
	}

	var pending pendingAuth
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("failed to decode flow state: %w", err)
	}

	provider, err := h.registry.Get(pending.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := provider.ExchangeCode(ctx, code, pending.CodeVerifier, pending.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	cred := &entities.DecryptedCredential{
		AccountID:    pending.AccountID,
		Provider:     pending.Provider,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    resp.ExpiresAt(),
		Scope:        resp.Scope,
	}
	if err := h.creds.Save(cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return cred, nil
}
