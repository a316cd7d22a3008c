// Command jwtverify verifies Okta access tokens, inspects an issuer's keys,
// obtains client-credentials tokens and serves a demo protected API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
