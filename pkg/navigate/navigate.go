// Package navigate builds identity provider URLs and abstracts the
// user-agent that follows them.
package navigate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Action string

const (
	Login  Action = "login"
	Logout Action = "logout"
)

const (
	ParamToken        = "token"
	ParamRefreshToken = "refresh_token"
	ParamNext         = "next"
	ParamDatabase     = "database"
	ParamApplication  = "appName"
)

// Navigator is the user-agent the client drives. Location is the page the
// provider should return to; Replace rewrites it without navigating.
type Navigator interface {
	Location() *url.URL
	Redirect(ctx context.Context, target *url.URL) error
	Replace(location *url.URL)
}

// BuildURL returns {authURL}/{action} carrying the return target and the
// database and application identifiers.
func BuildURL(
	authURL string,
	action Action,
	next string,
	database string,
	application string,
) (*url.URL, error) {
	switch action {
	case Login, Logout:
	default:
		return nil, fmt.Errorf("unknown navigation action %q", action)
	}

	u, err := url.Parse(strings.TrimSuffix(authURL, "/") + "/" + string(action))
	if err != nil {
		return nil, fmt.Errorf("invalid auth url %q: %w", authURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("auth url %q must be absolute", authURL)
	}

	q := url.Values{}
	q.Set(ParamApplication, application)
	q.Set(ParamDatabase, database)
	q.Set(ParamNext, next)
	u.RawQuery = q.Encode()
	return u, nil
}

// TokenParams reads the token pair a provider appended to location.
func TokenParams(location *url.URL) (access string, refresh string) {
	if location == nil {
		return "", ""
	}
	q := location.Query()
	return q.Get(ParamToken), q.Get(ParamRefreshToken)
}

// StripTokenParams returns a copy of location without the token
// parameters. Other parameters and the fragment are kept.
func StripTokenParams(location *url.URL) *url.URL {
	if location == nil {
		return nil
	}
	stripped := *location
	q := stripped.Query()
	q.Del(ParamToken)
	q.Del(ParamRefreshToken)
	stripped.RawQuery = q.Encode()
	return &stripped
}
