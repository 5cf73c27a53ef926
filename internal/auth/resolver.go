package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// Resolution failures beyond the codec's own taxonomy.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Principal is the authenticated caller attached to a request after
// resolution. TokenID and ExpiresAt let logout revoke the presented
// token without re-parsing it downstream.
type Principal struct {
	Identity  domain.Identity
	TokenID   string
	ExpiresAt time.Time
}

// IdentityResolver turns a raw Authorization header value into a
// Principal. It trusts validated claims as issued and never consults the
// user store; the only lookup is the revocation check.
type IdentityResolver struct {
	codec   *TokenCodec
	revoked RevocationList
}

// NewIdentityResolver builds a resolver. revoked may be nil when the
// deployment runs without a revocation list.
func NewIdentityResolver(codec *TokenCodec, revoked RevocationList) *IdentityResolver {
	return &IdentityResolver{codec: codec, revoked: revoked}
}

// Resolve validates the header and returns the caller's principal.
// Anything other than a well-formed "Bearer <token>" header is
// ErrMissingToken; codec failures propagate as-is.
func (r *IdentityResolver) Resolve(ctx context.Context, headerValue string) (*Principal, error) {
	token, err := bearerToken(headerValue)
	if err != nil {
		return nil, err
	}

	claims, err := r.codec.Parse(token)
	if err != nil {
		return nil, err
	}

	if r.revoked != nil {
		revoked, err := r.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("revocation check: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return &Principal{
		Identity:  claims.Identity(),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func bearerToken(headerValue string) (string, error) {
	if headerValue == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
