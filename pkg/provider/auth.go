package provider

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// TokenPair is the JSON body returned by /refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// Register creates an account. database is the only database the account
// may sign in to; empty allows any.
func (p *Provider) Register(
	handle string,
	password string,
	database string,
) error {
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}

	exists, err := p.db.handleExists(handle)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrHandleExists, handle)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.passwordMode.Cost())
	if err != nil {
		return fmt.Errorf("%w: failed to hash password: %v", ErrInternal, err)
	}
	if err := p.db.insertIdentity(handle, hash, database); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	p.log.Infow("registered identity", "handle", handle, "database", database)
	return nil
}

// Login checks credentials and issues a fresh pair for the application.
func (p *Provider) Login(
	handle string,
	password string,
	database string,
	appName string,
) (TokenPair, error) {
	identity, err := p.authenticate(handle, password)
	if err != nil {
		return TokenPair{}, err
	}
	if identity.database != "" && database != "" && identity.database != database {
		return TokenPair{}, fmt.Errorf("%w: %s may not use database %s", ErrInvalidCredentials, handle, database)
	}

	app, err := p.catalog.Get(appName)
	if err != nil {
		return TokenPair{}, err
	}

	user := tokens.Identity{
		ID:          strconv.FormatInt(identity.id, 10),
		Username:    handle,
		Database:    database,
		Application: appName,
	}
	return p.issuePair(user, app.Audience)
}

// Refresh consumes refreshToken and issues a new pair for the same
// identity and audience.
func (p *Provider) Refresh(refreshToken string) (TokenPair, error) {
	user, audience, err := p.issuer.VerifyRefreshTokenAudience(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: couldn't decode refresh token: %v", ErrTokenInvalid, err)
	}

	deleted, err := p.db.deleteRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: refresh token couldn't be deleted: %v", ErrInternal, err)
	}
	if !deleted {
		return TokenPair{}, ErrTokenNotFound
	}

	return p.issuePair(user, audience...)
}

// Revoke deletes an outstanding refresh token.
func (p *Provider) Revoke(refreshToken string) error {
	deleted, err := p.db.deleteRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: failed to delete refresh token: %v", ErrInternal, err)
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// OutstandingRefreshTokens counts refresh tokens issued to handle that
// have not been used or revoked.
func (p *Provider) OutstandingRefreshTokens(handle string) (int, error) {
	return p.db.countRefresh(handle)
}

func (p *Provider) issuePair(
	user tokens.Identity,
	audience ...string,
) (TokenPair, error) {
	access, err := p.issuer.IssueAccessToken(user, p.accessLifetime, audience...)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: couldn't issue access token: %v", ErrInternal, err)
	}
	refresh, err := p.issuer.IssueRefreshToken(user, p.refreshLifetime, audience...)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: couldn't issue refresh token: %v", ErrInternal, err)
	}

	claims, err := tokens.Parse(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := p.db.insertRefresh(user.Username, refresh, claims.ExpiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("%w: failed to store refresh token: %v", ErrInternal, err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (p *Provider) authenticate(
	handle string,
	password string,
) (*identityRow, error) {
	identity, err := p.db.getIdentity(handle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, handle)
		}
		return nil, fmt.Errorf("%w: failed to retrieve secret: %v", ErrInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword(identity.secret, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}

// redirectWithTokens appends the pair to next as `token` and
// `refresh_token`.
func redirectWithTokens(next *url.URL, pair TokenPair) *url.URL {
	target := *next
	q := target.Query()
	q.Set("token", pair.AccessToken)
	q.Set("refresh_token", pair.RefreshToken)
	target.RawQuery = q.Encode()
	return &target
}
