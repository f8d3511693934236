package clienttest_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/clienttest"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

func TestSignedIn(t *testing.T) {
	t.Parallel()
	env := clienttest.NewTestEnv("auth.example.test", "ledger")
	c := env.SignedIn(t, clienttest.User("alice"))

	assert.Equal(t, client.Authenticated, c.State())
	info, err := c.TokenInfo()
	require.NoError(t, err)
	assert.Equal(t, "alice", info.User.Username)
	assert.Equal(t, "ledger", info.User.Application)
}

func TestRefresher(t *testing.T) {
	t.Parallel()
	env := clienttest.NewTestEnv("auth.example.test", "ledger")
	c := env.SignedIn(t, clienttest.User("alice"))

	before, err := c.Token()
	require.NoError(t, err)
	require.NoError(t, c.Refresh(context.Background()))
	after, err := c.Token()
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Equal(t, int64(1), env.Refreshes())
}

func TestRefresher_RejectsForeignTokens(t *testing.T) {
	t.Parallel()
	env := clienttest.NewTestEnv("auth.example.test", "ledger")
	key, err := clienttest.GenerateTestKey()
	require.NoError(t, err)
	other := clienttest.NewTestEnvWithKey(key, "auth.example.test", "ledger")

	pair, err := other.IssuePair(clienttest.User("mallory"), time.Hour)
	require.NoError(t, err)
	_, err = env.Refresher().Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, client.ErrRefreshFailed)
	assert.Zero(t, env.Refreshes())
}

func TestNewClient_SignedOut(t *testing.T) {
	t.Parallel()
	env := clienttest.NewTestEnv("auth.example.test", "ledger")
	c, nav := env.NewClient(t)

	assert.Equal(t, client.Unauthenticated, c.State())
	require.NoError(t, c.Login(context.Background()))
	require.NotNil(t, nav.Last())
	assert.Equal(t, "auth.example.test", nav.Last().Host)
}

func TestAuthenticatedRequest(t *testing.T) {
	t.Parallel()
	env := clienttest.NewTestEnv("auth.example.test", "ledger")

	req, err := env.AuthenticatedRequest(http.MethodGet, "https://api.example.test/me", clienttest.User("alice"))
	require.NoError(t, err)

	bearer, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	require.True(t, ok)
	claims, err := tokens.Parse(bearer)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.User.Username)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}
