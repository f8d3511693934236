package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
)

func TestDecorate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	c := h.newClient(t)

	req := httptest.NewRequest(http.MethodPost, "https://api.test/things", strings.NewReader("a=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// not signed in
	assert.ErrorIs(t, c.Decorate(req), client.ErrInvalidToken)
	assert.Empty(t, req.Header.Get("Authorization"))

	access := h.access(t, time.Hour)
	require.NoError(t, c.SetTokens(context.Background(), access, ""))
	require.NoError(t, c.Decorate(req))

	// caller's content type wins
	assert.Equal(t, "Bearer "+access, req.Header.Get("Authorization"))
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
}

func TestAPIClient(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var gotAuth, gotPath, gotType string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
		}
		if r.URL.Path == "/v1/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "widget"})
	}))
	t.Cleanup(server.Close)

	h.cfg.APIURL = server.URL + "/v1/"
	c := h.newClient(t, client.WithHTTPClient(server.Client()))
	access := h.access(t, time.Hour)
	require.NoError(t, c.SetTokens(context.Background(), access, ""))

	var out map[string]string
	require.NoError(t, c.API().Get(context.Background(), "/things/1", &out))
	assert.Equal(t, "widget", out["name"])
	assert.Equal(t, "Bearer "+access, gotAuth)
	assert.Equal(t, "/v1/things/1", gotPath)
	assert.Equal(t, "application/json", gotType)

	require.NoError(t, c.API().Post(context.Background(), "things", map[string]string{"name": "gadget"}, nil))
	assert.Equal(t, "gadget", gotBody["name"])

	err := c.API().Get(context.Background(), "missing", nil)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "nope", apiErr.Body)
}

func TestTransport_SignedOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	c := h.newClient(t)

	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(server.Close)

	httpClient := &http.Client{Transport: &client.Transport{Decorator: c}}
	_, err := httpClient.Get(server.URL)

	// the request never leaves the process
	assert.ErrorIs(t, err, client.ErrInvalidToken)
	assert.False(t, called)
}
