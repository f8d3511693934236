package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TokenPair is replaced as a whole, never field by field. An empty
// RefreshToken means the provider did not issue one.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

type RefresherFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return f(ctx, refreshToken)
}

// HTTPRefresher posts a form to {AuthURL}/refresh.
type HTTPRefresher struct {
	URL         string
	Database    string
	Application string
	HTTPClient  *http.Client
}

func NewHTTPRefresher(cfg Config, httpClient *http.Client) *HTTPRefresher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPRefresher{
		URL:         cfg.AuthURL + "/refresh",
		Database:    cfg.Database,
		Application: cfg.Application,
		HTTPClient:  httpClient,
	}
}

func (r *HTTPRefresher) Refresh(
	ctx context.Context,
	refreshToken string,
) (TokenPair, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("database", r.Database)
	form.Set("appName", r.Application)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: couldn't build request: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return TokenPair{}, fmt.Errorf("%w: provider returned %d: %s", ErrRefreshFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return TokenPair{}, fmt.Errorf("%w: couldn't decode response: %v", ErrRefreshFailed, err)
	}
	if pair.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("%w: response missing 'access_token'", ErrRefreshFailed)
	}
	return pair, nil
}
