// Package github talks to GitHub on behalf of linked users: token exchange,
// token refresh and profile lookups.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/config"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
)

const (
	defaultTokenURL   = "https://github.com/login/oauth/access_token"
	defaultAPIBaseURL = "https://api.github.com"
)

// TokenResponse is the token endpoint payload. Expiry fields are seconds and
// zero when GitHub issued a non-expiring token.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
	Scope                 string `json:"scope"`
}

// OAuthError is a well formed error answer of the token endpoint.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return "github oauth: " + e.Code
	}
	return fmt.Sprintf("github oauth: %s: %s", e.Code, e.Description)
}

// User is the subset of the GitHub user profile we store.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type Client struct {
	ClientID     string
	ClientSecret string

	TokenURL   string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewClient(cfg config.GitHubConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	apiBase := strings.TrimSpace(cfg.APIBaseURL)
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	return &Client{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		TokenURL:     tokenURL,
		APIBaseURL:   strings.TrimRight(apiBase, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}
	form := url.Values{}
	form.Set("code", strings.TrimSpace(code))
	return c.token(ctx, "exchange", form)
}

// Refresh trades a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.token(ctx, "refresh", form)
}

func (c *Client) token(ctx context.Context, op string, form url.Values) (*TokenResponse, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, errors.New("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET are not configured")
	}
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, status, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: github token %s failed: status=%d body=%s", autherr.ErrExternalService, op, status, string(body))
	}

	// GitHub reports OAuth failures with status 200 and an error field
	var oe OAuthError
	if err := json.Unmarshal(body, &oe); err == nil && oe.Code != "" {
		return nil, &oe
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: github token %s: decode: %v", autherr.ErrExternalService, op, err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, fmt.Errorf("%w: github token %s returned empty access_token", autherr.ErrExternalService, op)
	}
	return &out, nil
}

// GetUser fetches the profile of the token owner.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("access token is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	body, status, err := c.do(req, "get_user")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, &OAuthError{Code: "invalid_token", Description: "access token rejected"}
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: github user request failed: status=%d body=%s", autherr.ErrExternalService, status, string(body))
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("%w: github user: decode: %v", autherr.ErrExternalService, err)
	}
	return &u, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.ExternalCallDuration.WithLabelValues("github", op).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: github %s: %v", autherr.ErrExternalService, op, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return body, resp.StatusCode, nil
}
