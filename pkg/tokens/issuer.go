package tokens

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer signs ES256 tokens for an identity provider and verifies the
// refresh tokens it handed out. Client applications never need one; it
// exists for the development provider and for tests.
type Issuer struct {
	signingKey   *ecdsa.PrivateKey
	issuerDomain string
	now          func() time.Time
}

func NewIssuer(
	signingKey *ecdsa.PrivateKey,
	issuerDomain string,
) *Issuer {
	return &Issuer{
		signingKey:   signingKey,
		issuerDomain: issuerDomain,
		now:          time.Now,
	}
}

// WithClock returns a copy of the issuer that stamps tokens using now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	clone := *i
	clone.now = now
	return &clone
}

func (i *Issuer) Domain() string { return i.issuerDomain }

// IssueAccessToken signs an access token for user. The audience defaults
// to the user's application when none is given.
func (i *Issuer) IssueAccessToken(
	user Identity,
	lifetime time.Duration,
	audience ...string,
) (string, error) {
	return i.issue(user, UseAccess, lifetime, audience)
}

func (i *Issuer) IssueRefreshToken(
	user Identity,
	lifetime time.Duration,
	audience ...string,
) (string, error) {
	return i.issue(user, UseRefresh, lifetime, audience)
}

func (i *Issuer) issue(
	user Identity,
	use string,
	lifetime time.Duration,
	audience []string,
) (string, error) {
	now := i.now()
	payload := Payload{
		Username:    user.Username,
		Database:    user.Database,
		Application: user.Application,
		Use:         use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuerDomain,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	if len(audience) > 0 {
		payload.Audience = jwt.ClaimStrings(audience)
	} else if user.Application != "" {
		payload.Audience = jwt.ClaimStrings{user.Application}
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodES256, payload).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %v", use, err)
	}
	return encoded, nil
}

// VerifyRefreshToken checks signature, issuer, expiry and token use, and
// returns the identity the refresh token was issued to.
func (i *Issuer) VerifyRefreshToken(
	tokenStr string,
) (Identity, error) {
	user, _, err := i.VerifyRefreshTokenAudience(tokenStr)
	return user, err
}

// VerifyRefreshTokenAudience is VerifyRefreshToken that also returns the
// audience the token was issued for.
func (i *Issuer) VerifyRefreshTokenAudience(
	tokenStr string,
) (Identity, []string, error) {
	payload := Payload{}
	_, err := jwt.ParseWithClaims(
		tokenStr,
		&payload,
		func(*jwt.Token) (any, error) { return &i.signingKey.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(i.issuerDomain),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, nil, fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	if payload.Use != UseRefresh {
		return Identity{}, nil, fmt.Errorf("%w: expected refresh token, got %q", errTokenInvalid, payload.Use)
	}
	return payload.claims().User, payload.Audience, nil
}
