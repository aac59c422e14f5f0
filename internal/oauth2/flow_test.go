package oauth2

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mealkeeper/mealkeeper/internal/crypto"
	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/statestore"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

type fakeProvider struct {
	kind        entities.ProviderKind
	exchangeErr error

	exchangedCode     string
	exchangedVerifier string
}

func (p *fakeProvider) Kind() entities.ProviderKind { return p.kind }

func (p *fakeProvider) BuildAuthURL(redirectURL string) (string, string, string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", "", "", err
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", "", "", err
	}
	return "https://auth.example.com/authorize?state=" + state, verifier, state, nil
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, codeVerifier, _ string) (*TokenResponse, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	p.exchangedCode = code
	p.exchangedVerifier = codeVerifier
	return &TokenResponse{
		AccessToken:  "granted-access",
		RefreshToken: "granted-refresh",
		TokenType:    "bearer",
		ExpiresIn:    3600,
		Scope:        "files",
	}, nil
}

func (p *fakeProvider) RefreshToken(context.Context, string) (*TokenResponse, error) {
	return nil, errors.New("not implemented")
}

type flowFixture struct {
	handler  *FlowHandler
	provider *fakeProvider
	creds    *tokenstore.Store
	states   statestore.Store
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "flow.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.CloudCredential{}))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	creds, err := tokenstore.New(db, key)
	require.NoError(t, err)

	provider := &fakeProvider{kind: entities.ProviderKindDropbox}
	registry := NewRegistry()
	registry.Register(provider)

	states := statestore.NewMemoryStore()
	return &flowFixture{
		handler:  NewFlowHandler(registry, creds, states),
		provider: provider,
		creds:    creds,
		states:   states,
	}
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestFlowStartAndComplete(t *testing.T) {
	f := newFlowFixture(t)

	authURL, err := f.handler.Start(1, entities.ProviderKindDropbox, "https://app.example.com/callback")
	require.NoError(t, err)
	require.Contains(t, authURL, "https://auth.example.com/authorize")

	state := stateFromAuthURL(t, authURL)
	cred, err := f.handler.Complete(context.Background(), state, "auth-code")
	require.NoError(t, err)

	assert.Equal(t, uint(1), cred.AccountID)
	assert.Equal(t, entities.ProviderKindDropbox, cred.Provider)
	assert.Equal(t, "granted-access", cred.AccessToken)
	assert.Equal(t, "auth-code", f.provider.exchangedCode)
	assert.NotEmpty(t, f.provider.exchangedVerifier)

	stored, err := f.creds.Get(1, entities.ProviderKindDropbox)
	require.NoError(t, err)
	assert.Equal(t, "granted-refresh", stored.RefreshToken)
}

func TestFlowCompleteRejectsUnknownState(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.handler.Complete(context.Background(), "never-issued", "auth-code")
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestFlowStateIsSingleUse(t *testing.T) {
	f := newFlowFixture(t)

	authURL, err := f.handler.Start(1, entities.ProviderKindDropbox, "https://app.example.com/callback")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = f.handler.Complete(context.Background(), state, "auth-code")
	require.NoError(t, err)

	_, err = f.handler.Complete(context.Background(), state, "auth-code")
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestFlowStartUnknownProvider(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.handler.Start(1, entities.ProviderKind("icloud"), "https://app.example.com/callback")
	require.ErrorIs(t, err, ErrProviderNotFound)
}

func TestFlowCompleteExchangeFailureKeepsNoCredential(t *testing.T) {
	f := newFlowFixture(t)
	f.provider.exchangeErr = errors.New("invalid_grant")

	authURL, err := f.handler.Start(1, entities.ProviderKindDropbox, "https://app.example.com/callback")
	require.NoError(t, err)

	_, err = f.handler.Complete(context.Background(), stateFromAuthURL(t, authURL), "auth-code")
	require.Error(t, err)

	has, err := f.creds.HasCredential(1, entities.ProviderKindDropbox)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPKCEHelpers(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEmpty(t, verifier)

	other, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, other)

	challenge := CodeChallenge(verifier)
	assert.NotEmpty(t, challenge)
	assert.NotEqual(t, verifier, challenge)
	assert.Equal(t, challenge, CodeChallenge(verifier))
}
