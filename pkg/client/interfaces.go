package client

import (
	"context"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// TokenSource is the read side of a session. Consumers that only attach
// credentials should depend on this rather than *Client.
type TokenSource interface {
	IsValid() bool
	Token() (string, error)
	TokenInfo() (TokenInfo, error)
	AuthHeaders() (http.Header, error)
}

// RequestDecorator adds credentials to an outgoing request.
type RequestDecorator interface {
	Decorate(req *http.Request) error
}

// Session is everything an interactive application drives.
type Session interface {
	TokenSource
	RequestDecorator
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// TokenInfo is computed on each call from the absolute expiry.
type TokenInfo struct {
	SecondsUntilExpiry int64           `json:"seconds_until_expiry" yaml:"seconds_until_expiry"`
	MinutesUntilExpiry int64           `json:"minutes_until_expiry" yaml:"minutes_until_expiry"`
	ExpiresAt          time.Time       `json:"expires_at" yaml:"expires_at"`
	User               tokens.Identity `json:"user" yaml:"user"`
}

var _ TokenSource = (*Client)(nil)
var _ RequestDecorator = (*Client)(nil)
var _ Session = (*Client)(nil)
