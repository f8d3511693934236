package client

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
)

// New validates cfg and looks for an existing session: first in the
// store, then in the navigator's location. If neither leaves the client
// signed in it redirects to the login page, or only logs a warning when
// auto-login is disabled.
func New(
	ctx context.Context,
	cfg Config,
	opts ...Option,
) (*Client, error) {
	merged, err := MergeConfig(cfg)
	if err != nil {
		return nil, err
	}

	c := newClient(merged, opts...)
	if c.acquire(ctx) {
		return c, nil
	}

	if merged.DisableAutoLogin {
		c.log.Warn("auto-login is disabled, call Login to sign in")
		return c, nil
	}
	if err := c.Login(ctx); err != nil {
		return nil, fmt.Errorf("couldn't start login: %w", err)
	}
	return c, nil
}

func (c *Client) acquire(ctx context.Context) bool {
	if pair := c.loadPersisted(ctx); pair.AccessToken != "" {
		if err := c.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			c.log.Warnw("persisted token unusable", "error", err)
		}
		if c.IsValid() {
			c.log.Debug("restored session from store")
			return true
		}
	}

	location := c.nav.Location()
	if access, refresh := navigate.TokenParams(location); access != "" {
		err := c.SetTokens(ctx, access, refresh)
		c.nav.Replace(navigate.StripTokenParams(location))
		if err != nil {
			c.log.Warnw("token in location unusable", "error", err)
		}
		if c.IsValid() {
			c.log.Debug("adopted session from location")
			return true
		}
	}

	c.log.Warn("no tokens found in store or location")
	return false
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<p>Signed in{{if .}} as <strong>{{.}}</strong>{{end}}. You can close this window.</p>
</body>
</html>
`))

// HandleCallback returns a handler for the URL the provider redirects to
// after login. It adopts the `token` and `refresh_token` query parameters
// and reports the outcome to done, which may be nil.
func (c *Client) HandleCallback(done func(error)) http.HandlerFunc {
	finish := func(err error) {
		if done != nil {
			done(err)
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		access, refresh := navigate.TokenParams(r.URL)
		if access == "" {
			http.Error(w, "missing required 'token' query param", http.StatusBadRequest)
			finish(fmt.Errorf("%w: callback carried no token", ErrInvalidToken))
			return
		}

		if err := c.SetTokens(r.Context(), access, refresh); err != nil {
			http.Error(w, "token rejected", http.StatusBadRequest)
			finish(err)
			return
		}

		info, err := c.TokenInfo()
		if err != nil {
			http.Error(w, "session could not be established", http.StatusUnauthorized)
			finish(err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := callbackPage.Execute(w, info.User.Username); err != nil {
			c.log.Warnw("failed to render callback page", "error", err)
		}
		finish(nil)
	}
}
