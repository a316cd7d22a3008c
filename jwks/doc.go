// Package jwks models the JSON Web Key Set published by an authorization
// server and retrieves it over HTTP.
//
// A KeySet is built once per fetch and never mutated afterwards; it can be
// shared freely between goroutines. Keys are indexed by their "kid". When a
// document carries the same kid more than once, the key that appears last
// wins.
//
// Fetch builds the retrieval URL by concatenating the issuer and the keys
// endpoint exactly as given:
//
//	ks, err := jwks.Fetch(ctx, nil, "https://example.okta.com/oauth2/default", "/v1/keys")
//	if errors.Is(err, jwks.ErrNetwork) { /* issuer unreachable */ }
//	if errors.Is(err, jwks.ErrParse) { /* issuer misconfigured */ }
//
// Response caching is not part of this package. Supply a Fetcher whose
// http.Client uses a caching transport (see package httpcache) to get it.
package jwks
