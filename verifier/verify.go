package verifier

import (
	"fmt"
	"reflect"

	"github.com/ggoodman/okta-jwt-verifier-go/internal/jwtauth"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Verify validates tok and decodes its claims into DefaultClaims.
func (v *Verifier) Verify(tok string) (*Token[DefaultClaims], error) {
	return Verify[DefaultClaims](v, tok)
}

// Verify validates tok against v and decodes its claims into T. Claims are
// returned only when the signature, the registered claims, the client id
// and the decode all succeed.
func Verify[T any](v *Verifier, tok string) (*Token[T], error) {
	hdr, err := jwtauth.ParseHeader(tok)
	if err != nil {
		return nil, err
	}
	if hdr.Kid == "" {
		return nil, ErrNoKeyID
	}

	jwk, ok := v.keys.Lookup(hdr.Kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrNoMatchingKey, hdr.Kid)
	}
	pub, err := jwk.PublicKey()
	if err != nil {
		return nil, err
	}

	hdr, claims, err := jwtauth.Decode(tok, pub, jwtauth.Policy{
		Algorithm: jwk.Algorithm(),
		Issuer:    v.issuer,
		Leeway:    v.cfg.Leeway,
		Audience:  v.cfg.Audience,
		Now:       v.cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	if v.cfg.ClientID != "" {
		cid, _ := jwtauth.StringClaim(claims, "cid")
		if cid != v.cfg.ClientID {
			return nil, fmt.Errorf("%w: token cid %q", ErrClientIDMismatch, cid)
		}
	}

	var out T
	if err := jwtauth.Project(claims, &out); err != nil {
		return nil, err
	}
	if err := validateClaims(&out); err != nil {
		return nil, err
	}
	return &Token[T]{Header: hdr, Claims: out}, nil
}

// validateClaims applies validator tags when the claim type is a struct.
func validateClaims(ref any) error {
	rv := reflect.ValueOf(ref)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(rv.Interface()); err != nil {
		return fmt.Errorf("%w: %v", ErrClaimDecode, err)
	}
	return nil
}
