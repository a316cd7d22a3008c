package jwks

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates the keys endpoint could not be reached or answered
	// with a non-success status.
	ErrNetwork = errors.New("jwks: network error")

	// ErrParse indicates the keys document or an individual key could not be
	// decoded.
	ErrParse = errors.New("jwks: parse error")

	// ErrUnsupportedKey indicates a key whose type or algorithm is outside the
	// RSA family. It always matches ErrParse as well.
	ErrUnsupportedKey = fmt.Errorf("%w: unsupported key", ErrParse)

	// ErrDiscovery indicates OpenID Connect discovery did not yield a usable
	// keys endpoint for the issuer.
	ErrDiscovery = errors.New("jwks: discovery failed")
)
