// Package provider is a small identity provider that speaks the redirect
// and refresh contract the client package expects. It is meant for local
// development and tests, not production.
//
// Routes:
//
//	GET  /login    login form carrying next, database and appName
//	POST /login    check credentials, redirect to next with token and refresh_token
//	GET  /logout   revoke an optional refresh_token, redirect to next
//	POST /refresh  rotate a refresh token, respond with a new JSON pair
package provider

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountNotFound     = errors.New("account not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrTokenNotFound       = errors.New("token not found")
	ErrInternal            = errors.New("internal error")
	ErrHandleExists        = errors.New("handle already exists")
	ErrInvalidHandle       = errors.New("invalid handle")
)

// PasswordMode controls bcrypt cost for password hashing.
type PasswordMode int

const (
	PasswordModeProduction PasswordMode = iota
	// PasswordModeTesting uses bcrypt.MinCost. Only for tests.
	PasswordModeTesting
)

func (m PasswordMode) Cost() int {
	if m == PasswordModeTesting {
		return bcrypt.MinCost
	}
	return bcrypt.DefaultCost
}

// Options configures a Provider. Issuer and Database are required.
type Options struct {
	Issuer          *tokens.Issuer
	Database        *Database
	Catalog         *Catalog
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	PasswordMode    PasswordMode
	Logger          *zap.SugaredLogger
}

type Provider struct {
	issuer          *tokens.Issuer
	db              *Database
	catalog         *Catalog
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	passwordMode    PasswordMode
	log             *zap.SugaredLogger
}

func New(opts Options) (*Provider, error) {
	if opts.Issuer == nil {
		return nil, errors.New("provider: issuer is required")
	}
	if opts.Database == nil {
		return nil, errors.New("provider: database is required")
	}

	p := &Provider{
		issuer:          opts.Issuer,
		db:              opts.Database,
		catalog:         opts.Catalog,
		accessLifetime:  opts.AccessLifetime,
		refreshLifetime: opts.RefreshLifetime,
		passwordMode:    opts.PasswordMode,
		log:             opts.Logger,
	}
	if p.catalog == nil {
		p.catalog = NewStaticCatalog(nil)
	}
	if p.accessLifetime <= 0 {
		p.accessLifetime = 30 * time.Minute
	}
	if p.refreshLifetime <= 0 {
		p.refreshLifetime = 72 * time.Hour
	}
	if p.log == nil {
		p.log = zap.NewNop().Sugar()
	}
	return p, nil
}

func (p *Provider) Catalog() *Catalog { return p.catalog }

func (p *Provider) Issuer() *tokens.Issuer { return p.issuer }
