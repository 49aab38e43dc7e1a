package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

// TierClaims are the claims the payment collaborator signs into tokens.
type TierClaims struct {
	Tier string `json:"tier"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 bearer tokens carrying a tier claim.
type JWTVerifier struct {
	signingKey []byte
	now        func() time.Time
}

type JWTOption func(*JWTVerifier)

// WithJWTClock sets the clock used for expiry checks.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		v.now = now
	}
}

func NewJWTVerifier(signingKey string, opts ...JWTOption) *JWTVerifier {
	v := &JWTVerifier{
		signingKey: []byte(signingKey),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *JWTVerifier) Verify(_ context.Context, cred requestcontext.Credential) (*Verified, error) {
	if cred.Scheme != requestcontext.SchemeBearer {
		return nil, ErrUnsupported
	}

	parsed, err := jwt.ParseWithClaims(cred.Secret, &TierClaims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*TierClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	tier, err := domain.ParseTier(claims.Tier)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries an unknown tier")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return &Verified{Subject: claims.Subject, Tier: tier, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// IssueToken signs a tier token. The payment collaborator issues tokens in
// production; this exists for tests and local tooling.
func IssueToken(signingKey, subject string, tier domain.Tier, issuedAt time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TierClaims{
		Tier: tier.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	return token.SignedString([]byte(signingKey))
}
