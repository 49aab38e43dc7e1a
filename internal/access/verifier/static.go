package verifier

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

// StaticKey is one configured API key, stored as a bcrypt hash.
type StaticKey struct {
	Name string
	Tier domain.Tier
	Hash []byte
}

// ParseStaticKeys reads "name:tier:bcrypt-hash" entries.
func ParseStaticKeys(entries []string) ([]StaticKey, error) {
	keys := make([]StaticKey, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("api key entry must be name:tier:hash")
		}
		tier, err := domain.ParseTier(parts[1])
		if err != nil {
			return nil, fmt.Errorf("api key %s: %w", parts[0], err)
		}
		if _, err := bcrypt.Cost([]byte(parts[2])); err != nil {
			return nil, fmt.Errorf("api key %s: hash is not bcrypt: %w", parts[0], err)
		}
		keys = append(keys, StaticKey{Name: parts[0], Tier: tier, Hash: []byte(parts[2])})
	}
	return keys, nil
}

// HashKey returns the bcrypt hash to configure for a plaintext key.
func HashKey(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "api key cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("could not hash api key: %w", err)
	}
	return string(hashed), nil
}

// StaticKeyVerifier checks X-API-Key secrets against configured hashes.
// Comparison is linear in the number of keys; wrap it in a CachingVerifier.
type StaticKeyVerifier struct {
	keys []StaticKey
}

func NewStaticKeyVerifier(keys []StaticKey) *StaticKeyVerifier {
	return &StaticKeyVerifier{keys: keys}
}

func (v *StaticKeyVerifier) Verify(_ context.Context, cred requestcontext.Credential) (*Verified, error) {
	if cred.Scheme != requestcontext.SchemeAPIKey {
		return nil, ErrUnsupported
	}
	for _, k := range v.keys {
		if bcrypt.CompareHashAndPassword(k.Hash, []byte(cred.Secret)) == nil {
			return &Verified{Subject: "key:" + k.Name, Tier: k.Tier}, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
}
