package jwks

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// DefaultAlgorithm is assumed for keys that do not declare "alg".
const DefaultAlgorithm = "RS256"

// supportedAlgs lists the RSA signature algorithms a key may declare.
var supportedAlgs = map[string]struct{}{
	"RS256": {}, "RS384": {}, "RS512": {},
	"PS256": {}, "PS384": {}, "PS512": {},
}

// JWK describes a single public signing key as published by the issuer.
type JWK struct {
	// Kty is the key type. Only "RSA" keys can be used for verification.
	Kty string `json:"kty" validate:"required"`
	// Alg is the algorithm the key is intended for. Empty means RS256.
	Alg string `json:"alg,omitempty"`
	// Kid selects this key among the keys of a set.
	Kid string `json:"kid" validate:"required"`
	// Use is the intended public key use, normally "sig".
	Use string `json:"use,omitempty"`
	// E is the base64url encoded big-endian RSA public exponent.
	E string `json:"e" validate:"required"`
	// N is the base64url encoded big-endian RSA modulus.
	N string `json:"n" validate:"required"`
}

// Algorithm returns the declared signing algorithm, defaulting to RS256.
func (k JWK) Algorithm() string {
	if k.Alg == "" {
		return DefaultAlgorithm
	}
	return k.Alg
}

// PublicKey reconstructs the RSA public key from the exponent and modulus.
func (k JWK) PublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: kid %q has key type %q", ErrUnsupportedKey, k.Kid, k.Kty)
	}
	if _, ok := supportedAlgs[k.Algorithm()]; !ok {
		return nil, fmt.Errorf("%w: kid %q declares algorithm %q", ErrUnsupportedKey, k.Kid, k.Alg)
	}
	raw, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: kid %q: %v", ErrParse, k.Kid, err)
	}
	pub, ok := jk.Key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q is not an RSA public key", ErrUnsupportedKey, k.Kid)
	}
	if pub.N.Sign() <= 0 || pub.E <= 1 {
		return nil, fmt.Errorf("%w: kid %q has invalid RSA parameters", ErrParse, k.Kid)
	}
	return pub, nil
}
