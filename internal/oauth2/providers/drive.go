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
	driveAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	driveTokenURL = "https://oauth2.googleapis.com/token"
	driveScope    = "https://www.googleapis.com/auth/drive.file"
)

// Drive implements OAuth2 for Google Drive.
type Drive struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewDrive(clientID, clientSecret string) *Drive {
	return &Drive{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Drive) Kind() entities.ProviderKind {
	return entities.ProviderKindDrive
}

func (p *Drive) BuildAuthURL(redirectURL string) (authURL, codeVerifier, state string, err error) {
	codeVerifier, err = oauth2.GenerateCodeVerifier()
	if err != nil {
		return "", "", "", err
	}
	state, err = oauth2.GenerateState()
	if err != nil {
		return "", "", "", err
	}

	params := url.Values{}
	params.Set("client_id", p.clientID)
	params.Set("response_type", "code")
	params.Set("scope", driveScope)
	params.Set("code_challenge", oauth2.CodeChallenge(codeVerifier))
	params.Set("code_challenge_method", "S256")
	params.Set("state", state)
	params.Set("access_type", "offline") // ask for a refresh token
	params.Set("prompt", "consent")
	if redirectURL != "" {
		params.Set("redirect_uri", redirectURL)
	}

	return driveAuthURL + "?" + params.Encode(), codeVerifier, state, nil
}

func (p *Drive) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*oauth2.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("code_verifier", codeVerifier)
	if redirectURL != "" {
		data.Set("redirect_uri", redirectURL)
	}

	return p.tokenRequest(ctx, data)
}

func (p *Drive) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)

	return p.tokenRequest(ctx, data)
}

func (p *Drive) tokenRequest(ctx context.Context, data url.Values) (*oauth2.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", driveTokenURL, strings.NewReader(data.Encode()))
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
		return nil, fmt.Errorf("google token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
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
	}, nil
}
