package verifier

import (
	"errors"

	"github.com/ggoodman/okta-jwt-verifier-go/internal/jwtauth"
	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
)

// Key retrieval errors, returned by New, NewWithConfig and Refresh.
var (
	// ErrNetwork indicates the issuer's keys endpoint was unreachable.
	ErrNetwork = jwks.ErrNetwork
	// ErrParse indicates the keys document or a key could not be decoded.
	ErrParse = jwks.ErrParse
)

// Verification errors, returned by Verify.
var (
	// ErrMalformedToken indicates the token is not a three-part compact JWS
	// with a decodable header.
	ErrMalformedToken = jwtauth.ErrMalformed
	// ErrNoKeyID indicates the token header carries no kid.
	ErrNoKeyID = errors.New("verifier: token header has no key id")
	// ErrNoMatchingKey indicates no fetched key has the token's kid.
	ErrNoMatchingKey = errors.New("verifier: no matching key")
	// ErrClientIDMismatch indicates the cid claim differs from the
	// configured client id.
	ErrClientIDMismatch = errors.New("verifier: client id mismatch")

	ErrSignatureInvalid = jwtauth.ErrSignatureInvalid
	ErrTokenExpired     = jwtauth.ErrTokenExpired
	ErrTokenNotYetValid = jwtauth.ErrTokenNotYetValid
	ErrIssuerMismatch   = jwtauth.ErrIssuerMismatch
	ErrAudienceMismatch = jwtauth.ErrAudienceMismatch
	ErrInvalidClaims    = jwtauth.ErrInvalidClaims
	ErrClaimDecode      = jwtauth.ErrClaimDecode
)

var errorClasses = []struct {
	err   error
	class string
}{
	{ErrNetwork, "network"},
	{ErrParse, "parse"},
	{ErrMalformedToken, "malformed_token"},
	{ErrNoKeyID, "no_key_id"},
	{ErrNoMatchingKey, "no_matching_key"},
	{ErrSignatureInvalid, "signature_invalid"},
	{ErrTokenExpired, "token_expired"},
	{ErrTokenNotYetValid, "token_not_yet_valid"},
	{ErrIssuerMismatch, "issuer_mismatch"},
	{ErrAudienceMismatch, "audience_mismatch"},
	{ErrClientIDMismatch, "client_id_mismatch"},
	{ErrClaimDecode, "claim_decode"},
	{ErrInvalidClaims, "invalid_claims"},
}

// Class returns a short stable name for the kind of err, suitable for logs
// and metrics labels. Unknown errors are "unknown"; nil is "".
func Class(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return "unknown"
}
