package jwtauth

import (
	"encoding/json"
	"fmt"
)

// Project re-encodes verified claims into ref, which must be a pointer.
func Project(claims map[string]any, ref any) error {
	b, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClaimDecode, err)
	}
	if err := json.Unmarshal(b, ref); err != nil {
		return fmt.Errorf("%w: %v", ErrClaimDecode, err)
	}
	return nil
}

// StringClaim returns claims[name] when it is a string.
func StringClaim(claims map[string]any, name string) (string, bool) {
	s, ok := claims[name].(string)
	return s, ok
}
