package auth

import (
	"crypto"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// PublicKey is one verification key from a published key set.
type PublicKey struct {
	KeyID     string
	KeyType   string // "RSA", "EC" or "OKP"
	Algorithm string // empty when the provider does not pin one (Azure AD)
	Use       string // "sig", "enc" or empty
	Key       crypto.PublicKey
}

// KeySet is an immutable, ordered list of verification keys. A refetch
// produces a new KeySet; existing ones are never modified.
type KeySet struct {
	keys []PublicKey
}

// CachedKeySet is a KeySet with the time and place it was fetched from.
type CachedKeySet struct {
	Keys      *KeySet
	FetchedAt time.Time
	SourceURL string
}

// ParseKeySet parses a JWKS document. Only public RSA, EC and OKP keys
// are kept; private key material is reduced to its public half and
// symmetric keys are dropped, since accepting one would let anybody who
// can read the JWKS mint tokens. A document that parses but yields no
// usable key is rejected as well.
func ParseKeySet(data []byte) (*KeySet, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse JWKS: %w", err)
	}

	keys := make([]PublicKey, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		k, ok := set.Key(i)
		if !ok {
			continue
		}
		pk, ok, err := toPublicKey(k)
		if err != nil {
			return nil, fmt.Errorf("key %d (kid %q): %w", i, k.KeyID(), err)
		}
		if ok {
			keys = append(keys, pk)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("JWKS contains no usable public keys (%d entries)", set.Len())
	}
	return &KeySet{keys: keys}, nil
}

func toPublicKey(k jwk.Key) (PublicKey, bool, error) {
	switch k.KeyType() {
	case jwa.RSA, jwa.EC, jwa.OKP:
	default:
		return PublicKey{}, false, nil
	}

	pub, err := k.PublicKey()
	if err != nil {
		return PublicKey{}, false, err
	}
	var raw any
	if err := pub.Raw(&raw); err != nil {
		return PublicKey{}, false, err
	}

	alg := ""
	if a := k.Algorithm(); a != nil {
		alg = a.String()
	}
	return PublicKey{
		KeyID:     k.KeyID(),
		KeyType:   k.KeyType().String(),
		Algorithm: alg,
		Use:       k.KeyUsage(),
		Key:       raw,
	}, true, nil
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns a copy of the keys in document order.
func (s *KeySet) Keys() []PublicKey {
	if s == nil {
		return nil
	}
	return append([]PublicKey(nil), s.keys...)
}

// Candidates returns the keys that may have produced a signature with alg
// and key-id kid. An empty kid matches every key. A key qualifies when
// its own alg equals alg, or it has no alg and its type fits alg, and its
// use is "sig" or unset.
func (s *KeySet) Candidates(kid, alg string) []PublicKey {
	if s == nil {
		return nil
	}
	wantType := allowedAlgorithms[alg]
	var out []PublicKey
	for _, k := range s.keys {
		if kid != "" && k.KeyID != kid {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != alg {
			continue
		}
		if k.Algorithm == "" && k.KeyType != wantType {
			continue
		}
		out = append(out, k)
	}
	return out
}
