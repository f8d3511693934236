package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Decorate sets the Authorization header on req. Content-Type defaults to
// JSON unless the caller already chose one.
func (c *Client) Decorate(req *http.Request) error {
	headers, err := c.AuthHeaders()
	if err != nil {
		return err
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Authorization", headers.Get("Authorization"))
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", headers.Get("Content-Type"))
	}
	return nil
}

// Transport decorates every request before handing it to Base.
type Transport struct {
	Base      http.RoundTripper
	Decorator RequestDecorator
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// a RoundTripper must not modify the caller's request
	decorated := req.Clone(req.Context())
	if err := t.Decorator.Decorate(decorated); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return base.RoundTrip(decorated)
}

// APIClient calls the application API at {APIURL}/{path} with the
// client's credentials.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// API returns an API client sharing this client's HTTP settings.
func (c *Client) API() *APIClient {
	base := c.httpClient.Transport
	return &APIClient{
		baseURL: c.cfg.APIURL,
		http: &http.Client{
			Transport: &Transport{Base: base, Decorator: c},
			Timeout:   c.httpClient.Timeout,
		},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Body)
}

func (a *APIClient) URL(path string) string {
	return a.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Do sends body as JSON when non-nil and decodes a JSON response into out
// when non-nil.
func (a *APIClient) Do(
	ctx context.Context,
	method string,
	path string,
	body any,
	out any,
) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("couldn't encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.URL(path), reader)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("couldn't decode response: %v", err)
	}
	return nil
}

func (a *APIClient) Get(ctx context.Context, path string, out any) error {
	return a.Do(ctx, http.MethodGet, path, nil, out)
}

func (a *APIClient) Post(ctx context.Context, path string, body any, out any) error {
	return a.Do(ctx, http.MethodPost, path, body, out)
}
