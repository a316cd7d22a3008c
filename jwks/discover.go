package jwks

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ggoodman/okta-jwt-verifier-go/internal/wellknown"
)

// Discover performs OpenID Connect discovery against issuer and returns the
// keys endpoint relative to the issuer, suitable for Fetch. The advertised
// jwks_uri must live under the issuer; anything else is rejected so the
// trust anchor stays tied to the configured issuer. A nil client means
// http.DefaultClient.
func Discover(ctx context.Context, client *http.Client, issuer string) (string, error) {
	meta, err := wellknown.Discover(ctx, client, issuer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if meta.JwksURI == "" {
		return "", fmt.Errorf("%w: issuer %s does not advertise jwks_uri", ErrDiscovery, issuer)
	}
	endpoint, ok := strings.CutPrefix(meta.JwksURI, issuer)
	if !ok || endpoint == "" {
		return "", fmt.Errorf("%w: jwks_uri %s is not under issuer %s", ErrDiscovery, meta.JwksURI, issuer)
	}
	return endpoint, nil
}
