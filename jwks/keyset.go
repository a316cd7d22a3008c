package jwks

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// document is the wire shape of a keys endpoint response.
type document struct {
	Keys []JWK `json:"keys" validate:"required,dive"`
}

// KeySet is an immutable collection of keys indexed by kid.
type KeySet struct {
	keys map[string]JWK
}

// NewKeySet indexes keys by kid. Later duplicates replace earlier ones.
func NewKeySet(keys []JWK) *KeySet {
	m := make(map[string]JWK, len(keys))
	for _, k := range keys {
		m[k.Kid] = k
	}
	return &KeySet{keys: m}
}

// ParseKeySet decodes a {"keys": [...]} document.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return NewKeySet(doc.Keys), nil
}

// Lookup returns the key registered under kid.
func (s *KeySet) Lookup(kid string) (JWK, bool) {
	if s == nil {
		return JWK{}, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len reports the number of distinct key ids.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// KeyIDs returns the key ids in ascending order.
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}

// Keys returns a copy of the keys ordered by kid.
func (s *KeySet) Keys() []JWK {
	ids := s.KeyIDs()
	out := make([]JWK, 0, len(ids))
	for _, kid := range ids {
		out = append(out, s.keys[kid])
	}
	return out
}

// MarshalJSON re-emits the set as a keys document.
func (s *KeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{Keys: s.Keys()})
}
