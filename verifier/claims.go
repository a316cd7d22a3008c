package verifier

import "github.com/ggoodman/okta-jwt-verifier-go/internal/jwtauth"

// Header is the verified JOSE header of a token.
type Header = jwtauth.Header

// Token is the outcome of a successful verification.
type Token[T any] struct {
	Header Header `json:"header"`
	Claims T      `json:"claims"`
}

// DefaultClaims describes the claims of an Okta access token.
type DefaultClaims struct {
	// Iss identifies the authorization server that issued the token.
	Iss string `json:"iss" validate:"required"`
	// Sub is the subject of the token.
	Sub string `json:"sub" validate:"required"`
	// Scp lists the scopes granted to an access token.
	Scp []string `json:"scp,omitempty"`
	// Cid is the client id of the client that requested the token.
	Cid string `json:"cid,omitempty"`
	// Uid identifies the user. Absent when no user is bound to the token.
	Uid string `json:"uid,omitempty"`
	// Exp is the expiry in Unix seconds.
	Exp uint64 `json:"exp" validate:"required"`
	// Iat is the issue time in Unix seconds.
	Iat uint64 `json:"iat" validate:"required"`
}

// HasScope reports whether scope was granted.
func (c DefaultClaims) HasScope(scope string) bool {
	for _, s := range c.Scp {
		if s == scope {
			return true
		}
	}
	return false
}
