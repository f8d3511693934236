package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
)

func TestHTTPRefresher(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// form post carrying the refresh token and identifiers
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/refresh", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "prod", r.PostForm.Get("database"))
		assert.Equal(t, "ledger", r.PostForm.Get("appName"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "newA",
			"refresh_token": "newR",
		})
	}))
	t.Cleanup(server.Close)

	r := client.NewHTTPRefresher(client.Config{
		AuthURL:     server.URL,
		Database:    "prod",
		Application: "ledger",
	}, server.Client())

	pair, err := r.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, client.TokenPair{AccessToken: "newA", RefreshToken: "newR"}, pair)
}

func TestHTTPRefresher_Failures(t *testing.T) {
	t.Parallel()
	tests := map[string]http.HandlerFunc{
		"unauthorized": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		},
		"missing access token": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"refresh_token":"newR"}`))
		},
	}

	for name, handler := range tests {
		handler := handler
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(handler)
			t.Cleanup(server.Close)

			r := client.NewHTTPRefresher(client.Config{AuthURL: server.URL}, server.Client())
			_, err := r.Refresh(context.Background(), "old")
			require.Error(t, err)
			assert.ErrorIs(t, err, client.ErrRefreshFailed)
		})
	}
}

func TestHTTPRefresher_Unreachable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := client.NewHTTPRefresher(client.Config{AuthURL: url}, nil).Refresh(context.Background(), "old")
	assert.ErrorIs(t, err, client.ErrRefreshFailed)
}

func TestRefresherFunc(t *testing.T) {
	t.Parallel()
	var r client.Refresher = client.RefresherFunc(func(_ context.Context, token string) (client.TokenPair, error) {
		return client.TokenPair{AccessToken: token + "!"}, nil
	})
	pair, err := r.Refresh(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x!", pair.AccessToken)
}
