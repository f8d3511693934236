package clienttest

import (
	"net/http"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// AuthenticatedRequest creates a request carrying a bearer token issued
// for user with the default lifetime.
func (env *TestEnv) AuthenticatedRequest(
	method string,
	url string,
	user tokens.Identity,
) (
	*http.Request,
	error,
) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	pair, err := env.IssuePair(user, env.AccessLifetime)
	if err != nil {
		return nil, err
	}
	AddBearer(req, pair.AccessToken)
	return req, nil
}

// AddBearer sets the headers the client sends on API requests.
func AddBearer(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
}
