// Package wellknown holds the metadata documents exchanged with
// authorization servers and advertised to clients.
package wellknown

// ProtectedResourceMetadataPath is where RFC 9728 metadata is served.
const ProtectedResourceMetadataPath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata describes a resource server guarded by bearer
// tokens from one issuer (RFC 9728).
type ProtectedResourceMetadata struct {
	Resource                          string   `json:"resource"`
	AuthorizationServers              []string `json:"authorization_servers,omitempty"`
	JwksURI                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported            []string `json:"bearer_methods_supported,omitempty"`
	ResourceSigningAlgValuesSupported []string `json:"resource_signing_alg_values_supported,omitempty"`
	ResourceName                      string   `json:"resource_name,omitempty"`
}

// NewProtectedResourceMetadata returns metadata for resource accepting
// header-borne bearer tokens from issuer.
func NewProtectedResourceMetadata(resource, issuer, jwksURI string) ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{issuer},
		JwksURI:                jwksURI,
		BearerMethodsSupported: []string{"header"},
	}
}
