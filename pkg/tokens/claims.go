package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Payload is the JSON claims section of a token issued by the identity
// provider. It sits between the encoded token and the [Claims] Go struct.
type Payload struct {
	Username    string `json:"username,omitempty"`
	Database    string `json:"database,omitempty"`
	Application string `json:"application,omitempty"`
	Use         string `json:"use,omitempty"`
	jwt.RegisteredClaims
}

// Identity describes who a token was issued to. Empty fields mean the
// claim was absent from the token.
type Identity struct {
	ID          string `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	Database    string `json:"database" yaml:"database"`
	Application string `json:"application" yaml:"application"`
}

// Claims is the decoded view of an access token. Expiry is kept as an
// absolute timestamp so remaining lifetime can be recomputed at any time.
type Claims struct {
	ExpiresAt time.Time
	IssuedAt  time.Time
	User      Identity
}

func (c *Claims) SecondsUntilExpiry(now time.Time) int64 {
	return c.ExpiresAt.Unix() - now.Unix()
}

func (c *Claims) MinutesUntilExpiry(now time.Time) int64 {
	secs := c.SecondsUntilExpiry(now)
	// floor, not truncation
	mins := secs / 60
	if secs%60 != 0 && secs < 0 {
		mins--
	}
	return mins
}

func (c *Claims) Expired(now time.Time) bool {
	return c.SecondsUntilExpiry(now) <= 0
}

// Parse decodes the payload of a compact three-segment token. The
// signature is not verified; that is the identity provider's job. Any
// structural problem is reported as [ErrTokenMalformed].
func Parse(tokenStr string) (*Claims, error) {
	_, encPayload, _, err := validateStructure(tokenStr)
	if err != nil {
		return nil, malformed("%v", err)
	}

	payload := Payload{}
	if err := decodeJWTSection(encPayload, &payload); err != nil {
		return nil, malformed("token payload malformed: %v", err)
	}
	if payload.ExpiresAt == nil {
		return nil, malformed("token payload missing 'exp'")
	}

	return payload.claims(), nil
}

func (p *Payload) claims() *Claims {
	claims := &Claims{
		ExpiresAt: p.ExpiresAt.Time,
		User: Identity{
			ID:          p.Subject,
			Username:    p.Username,
			Database:    p.Database,
			Application: p.Application,
		},
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	return claims
}
