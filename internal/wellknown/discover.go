package wellknown

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Discover fetches the OpenID Connect discovery document for issuer. The
// issuer advertised in the document must match exactly. A nil client means
// http.DefaultClient.
func Discover(ctx context.Context, client *http.Client, issuer string) (*AuthServerMetadata, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta AuthServerMetadata
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	return &meta, nil
}
