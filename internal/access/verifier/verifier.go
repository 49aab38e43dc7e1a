// Package verifier checks caller credentials and resolves them to a tier.
//
// Verification is a trust boundary: the gate never inspects secrets itself,
// it only consumes a Verified result or falls back to the explorer tier.
package verifier

import (
	"context"
	"errors"
	"time"

	"beacon/pkg/domain"
	"beacon/pkg/requestcontext"
)

// ErrUnsupported means a verifier does not handle the credential's scheme.
// A chain moves on to the next verifier.
var ErrUnsupported = errors.New("credential scheme not supported")

// Verified is a credential the verifier vouches for. A zero ExpiresAt means
// the credential does not expire.
type Verified struct {
	Subject   string
	Tier      domain.Tier
	ExpiresAt time.Time
}

// Verifier validates a presented credential.
type Verifier interface {
	Verify(ctx context.Context, cred requestcontext.Credential) (*Verified, error)
}

// Chain tries verifiers in order until one accepts the credential's scheme.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, cred requestcontext.Credential) (*Verified, error) {
	for _, v := range c {
		if v == nil {
			continue
		}
		verified, err := v.Verify(ctx, cred)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		return verified, err
	}
	return nil, ErrUnsupported
}
