// Package tokens decodes and issues the compact JWTs exchanged with the
// identity provider.
//
// Client applications only need [Parse], which decodes a token's payload
// into [Claims] without verifying the signature:
//
//	claims, err := tokens.Parse(accessToken)
//	if errors.Is(err, tokens.ErrTokenMalformed()) {
//	    // not a three-segment token, or the payload is not JSON
//	}
//	remaining := claims.SecondsUntilExpiry(time.Now())
//	username := claims.User.Username
//
// Verification is the identity provider's responsibility. The provider
// side uses an [Issuer], which signs ES256 access and refresh tokens and
// verifies refresh tokens presented for rotation:
//
//	issuer := tokens.NewIssuer(signingKey, "auth.example.com")
//	access, _ := issuer.IssueAccessToken(tokens.Identity{ID: "42", Username: "alice"}, 30*time.Minute)
//	refresh, _ := issuer.IssueRefreshToken(tokens.Identity{ID: "42", Username: "alice"}, 72*time.Hour)
//	user, err := issuer.VerifyRefreshToken(refresh)
package tokens
