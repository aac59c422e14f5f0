// Package providers contains the OAuth2 vendor integrations.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
)

const (
	dropboxAuthURL  = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL = "https://api.dropboxapi.com/oauth2/token"
)

// Dropbox implements OAuth2 for Dropbox using PKCE.
type Dropbox struct {
	appKey     string
	httpClient *http.Client
}

func NewDropbox(appKey string) *Dropbox {
	return &Dropbox{
		appKey:     appKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Dropbox) Kind() entities.ProviderKind {
	return entities.ProviderKindDropbox
}

func (p *Dropbox) BuildAuthURL(redirectURL string) (authURL, codeVerifier, state string, err error) {
	codeVerifier, err = oauth2.GenerateCodeVerifier()
	if err != nil {
		return "", "", "", err
	}
	state, err = oauth2.GenerateState()
	if err != nil {
		return "", "", "", err
	}

	params := url.Values{}
	params.Set("client_id", p.appKey)
	params.Set("response_type", "code")
	params.Set("code_challenge", oauth2.CodeChallenge(codeVerifier))
	params.Set("code_challenge_method", "S256")
	params.Set("state", state)
	params.Set("token_access_type", "offline") // ask for a refresh token
	if redirectURL != "" {
		params.Set("redirect_uri", redirectURL)
	}

	return dropboxAuthURL + "?" + params.Encode(), codeVerifier, state, nil
}

func (p *Dropbox) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*oauth2.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", p.appKey)
	data.Set("code_verifier", codeVerifier)
	if redirectURL != "" {
		data.Set("redirect_uri", redirectURL)
	}

	return p.tokenRequest(ctx, data)
}

func (p *Dropbox) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", p.appKey)

	return p.tokenRequest(ctx, data)
}

func (p *Dropbox) tokenRequest(ctx context.Context, data url.Values) (*oauth2.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", dropboxTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("dropbox token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("dropbox token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
		AccountID    string `json:"account_id"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &oauth2.TokenResponse{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ExpiresIn:    tokenResp.ExpiresIn,
		Scope:        tokenResp.Scope,
		AccountRef:   tokenResp.AccountID,
	}, nil
}
