// Package verifier validates OAuth 2.0 / OpenID Connect tokens issued by an
// authorization server such as Okta.
//
// A Verifier is bound to one issuer. Construction fetches the issuer's
// signing keys once and freezes them; Verify never performs I/O. The keys
// are not refetched behind the caller's back: when the issuer rotates keys,
// tokens signed by the new key fail with ErrNoMatchingKey until the caller
// invokes Refresh (or builds a new Verifier).
//
//	v, err := verifier.New(ctx, "https://example.okta.com/oauth2/default",
//	    verifier.WithAudience("api://default"),
//	    verifier.WithClientID("0oa1b2c3"),
//	)
//	if err != nil { log.Fatal(err) }
//
//	tok, err := v.Verify(bearer)
//	if errors.Is(err, verifier.ErrTokenExpired) { /* ask for a new token */ }
//	fmt.Println(tok.Claims.Sub)
//
// Verify runs a fixed pipeline and stops at the first failure: decode the
// header and extract kid (ErrNoKeyID), resolve the key (ErrNoMatchingKey),
// verify the signature and the registered claims (ErrSignatureInvalid,
// ErrTokenExpired, ErrIssuerMismatch, ErrAudienceMismatch, ...), compare the
// cid claim with the configured client id (ErrClientIDMismatch) and finally
// decode the payload into the caller's claim type (ErrClaimDecode). Claims
// are only ever returned when every step passed.
//
// # Custom claims
//
// Verify is generic over the claim type:
//
//	type MyClaims struct {
//	    Sub    string   `json:"sub" validate:"required"`
//	    Groups []string `json:"groups"`
//	}
//	tok, err := verifier.Verify[MyClaims](v, bearer)
//
// Struct claim types are checked with go-playground/validator tags after
// decoding.
//
// # Configuration
//
// Verifiers are values: the builder methods (Leeway, Audience, AddAudience,
// ClientID) return a modified copy and never touch the receiver. Configure
// first, then share the result between goroutines.
package verifier
