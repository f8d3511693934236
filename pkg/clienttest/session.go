package clienttest

import (
	"context"
	"testing"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// Config returns a client configuration pointing at placeholder URLs for
// the environment's application.
func (env *TestEnv) Config() client.Config {
	return client.Config{
		AuthURL:          "https://" + env.Domain,
		APIURL:           "https://api." + env.Domain,
		Application:      env.Application,
		DisableAutoLogin: true,
	}
}

// NewClient builds a signed-out client wired to the environment: memory
// store, a recording navigator and the environment's refresher. Extra
// options are applied last.
func (env *TestEnv) NewClient(
	t testing.TB,
	opts ...client.Option,
) (*client.Client, *navigate.Recorder) {
	t.Helper()
	nav, err := navigate.NewRecorder("https://app." + env.Domain + "/")
	if err != nil {
		t.Fatalf("clienttest: navigator: %v", err)
	}
	base := []client.Option{
		client.WithStore(store.NewMemory()),
		client.WithNavigator(nav),
		client.WithRefresher(env.Refresher()),
	}
	c, err := client.New(context.Background(), env.Config(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("clienttest: new client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, nav
}

// SignedIn returns a client already holding a fresh pair for user.
func (env *TestEnv) SignedIn(
	t testing.TB,
	user tokens.Identity,
	opts ...client.Option,
) *client.Client {
	t.Helper()
	c, _ := env.NewClient(t, opts...)
	pair, err := env.IssuePair(user, env.AccessLifetime)
	if err != nil {
		t.Fatalf("clienttest: issue pair: %v", err)
	}
	if err := c.SetTokens(context.Background(), pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("clienttest: set tokens: %v", err)
	}
	return c
}
