// Package jwtauth decodes compact JWTs against a resolved RSA key and
// validates their registered claims.
package jwtauth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed indicates the token is not a well-formed compact JWT.
	ErrMalformed = errors.New("jwtauth: malformed token")
	// ErrSignatureInvalid indicates the signature did not verify under the
	// resolved key and algorithm.
	ErrSignatureInvalid = errors.New("jwtauth: signature invalid")
	// ErrTokenExpired indicates exp is in the past beyond the leeway.
	ErrTokenExpired = errors.New("jwtauth: token expired")
	// ErrTokenNotYetValid indicates nbf is in the future beyond the leeway.
	ErrTokenNotYetValid = errors.New("jwtauth: token not yet valid")
	// ErrIssuerMismatch indicates iss differs from the configured issuer.
	ErrIssuerMismatch = errors.New("jwtauth: issuer mismatch")
	// ErrAudienceMismatch indicates aud shares no value with the accepted set.
	ErrAudienceMismatch = errors.New("jwtauth: audience mismatch")
	// ErrInvalidClaims covers remaining registered-claim failures, such as a
	// missing exp or iss.
	ErrInvalidClaims = errors.New("jwtauth: invalid claims")
	// ErrClaimDecode indicates the verified payload does not fit the
	// requested claim type.
	ErrClaimDecode = errors.New("jwtauth: claim decode failed")
)

// Header is the subset of the JOSE header callers care about.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid,omitempty"`
	Typ string `json:"typ,omitempty"`
}

// Policy controls validation of a single token.
type Policy struct {
	// Algorithm is the only signing algorithm accepted.
	Algorithm string
	// Issuer must equal the iss claim exactly.
	Issuer string
	// Leeway is the clock skew tolerated on exp and nbf.
	Leeway time.Duration
	// Audience, when non-empty, must intersect the aud claim.
	Audience []string
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// ParseHeader decodes the JOSE header without verifying the signature.
func ParseHeader(tok string) (Header, error) {
	if tok == "" {
		return Header{}, fmt.Errorf("%w: empty token", ErrMalformed)
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return headerOf(parsed), nil
}

// Decode verifies tok with key under p and returns the header and the
// verified claims. Nothing is returned unless every check passes.
func Decode(tok string, key *rsa.PublicKey, p Policy) (Header, jwt.MapClaims, error) {
	if key == nil {
		return Header{}, nil, fmt.Errorf("%w: no verification key", ErrSignatureInvalid)
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(p.Issuer),
		jwt.WithJSONNumber(),
		// NumericDate has second precision. Compare on whole seconds and keep
		// the last second of the leeway window valid: exp + leeway == now passes.
		jwt.WithTimeFunc(func() time.Time { return now().Truncate(time.Second) }),
		jwt.WithLeeway(p.Leeway + time.Nanosecond),
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return Header{}, nil, classify(err)
	}

	if len(p.Audience) > 0 {
		aud, err := claims.GetAudience()
		if err != nil {
			return Header{}, nil, fmt.Errorf("%w: %v", ErrAudienceMismatch, err)
		}
		if !audIntersects(aud, p.Audience) {
			return Header{}, nil, fmt.Errorf("%w: token audience %v not accepted", ErrAudienceMismatch, []string(aud))
		}
	}

	return headerOf(parsed), claims, nil
}

// classify maps parser failures onto this package's sentinels. Signature
// failures are checked first: claims of an unverified token mean nothing.
func classify(err error) error {
	var sentinel error
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		sentinel = ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		sentinel = ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		sentinel = ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		sentinel = ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		sentinel = ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		sentinel = ErrAudienceMismatch
	default:
		sentinel = ErrInvalidClaims
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func headerOf(t *jwt.Token) Header {
	var h Header
	h.Alg, _ = t.Header["alg"].(string)
	h.Kid, _ = t.Header["kid"].(string)
	h.Typ, _ = t.Header["typ"].(string)
	return h
}

func audIntersects(aud jwt.ClaimStrings, wants []string) bool {
	wantSet := make(map[string]struct{}, len(wants))
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	for _, a := range aud {
		if _, ok := wantSet[a]; ok {
			return true
		}
	}
	return false
}
