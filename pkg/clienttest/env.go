package clienttest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync/atomic"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

const (
	DefaultAccessLifetime  = 30 * time.Minute
	DefaultRefreshLifetime = 24 * time.Hour
)

// TestEnv issues tokens for one application.
type TestEnv struct {
	Issuer          *tokens.Issuer
	Domain          string
	Application     string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration

	refreshes atomic.Int64
}

// NewTestEnv creates a test environment with the shared key.
func NewTestEnv(
	domain string,
	application string,
) *TestEnv {
	return NewTestEnvWithKey(SharedTestKey(), domain, application)
}

// NewTestEnvWithKey creates a test environment with a specific key.
func NewTestEnvWithKey(
	key *ecdsa.PrivateKey,
	domain string,
	application string,
) *TestEnv {
	return &TestEnv{
		Issuer:          tokens.NewIssuer(key, domain),
		Domain:          domain,
		Application:     application,
		AccessLifetime:  DefaultAccessLifetime,
		RefreshLifetime: DefaultRefreshLifetime,
	}
}

// User returns an identity with the given username and ID.
func User(username string) tokens.Identity {
	return tokens.Identity{ID: username, Username: username}
}

func (env *TestEnv) identity(user tokens.Identity) tokens.Identity {
	if user.Application == "" {
		user.Application = env.Application
	}
	return user
}

// IssuePair signs an access token living for lifetime and a refresh
// token with the environment's refresh lifetime.
func (env *TestEnv) IssuePair(
	user tokens.Identity,
	lifetime time.Duration,
) (
	client.TokenPair,
	error,
) {
	user = env.identity(user)
	access, err := env.Issuer.IssueAccessToken(user, lifetime)
	if err != nil {
		return client.TokenPair{}, err
	}
	refresh, err := env.Issuer.IssueRefreshToken(user, env.RefreshLifetime)
	if err != nil {
		return client.TokenPair{}, err
	}
	return client.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresher answers refresh calls the way the provider would, without
// rotation bookkeeping: any unexpired refresh token signed by the
// environment is exchanged for a fresh pair.
func (env *TestEnv) Refresher() client.Refresher {
	return client.RefresherFunc(func(_ context.Context, refreshToken string) (client.TokenPair, error) {
		user, err := env.Issuer.VerifyRefreshToken(refreshToken)
		if err != nil {
			return client.TokenPair{}, fmt.Errorf("%w: %v", client.ErrRefreshFailed, err)
		}
		env.refreshes.Add(1)
		return env.IssuePair(user, env.AccessLifetime)
	})
}

// Refreshes counts the exchanges [TestEnv.Refresher] has performed.
func (env *TestEnv) Refreshes() int64 {
	return env.refreshes.Load()
}
