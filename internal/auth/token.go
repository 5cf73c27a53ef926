package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/task-service/internal/domain"
)

// Token validation failures. The distinctions matter server-side only;
// clients receive one generic unauthenticated response for all of them.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// TokenCodec issues and validates signed HS256 tokens. Tokens are
// self-contained: subject, role, issue and expiry times all travel in the
// signed payload and nothing is stored server-side.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	skew   time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec with the given signing secret, validity
// window and clock-skew tolerance.
func NewTokenCodec(secret string, ttl, skew time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if skew < 0 {
		skew = 0
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, skew: skew, now: time.Now}
}

// Claims describes the token payload.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the subject/role pair encoded in validated claims.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{SubjectID: c.Subject, Role: c.Role}
}

// Issue builds and signs a token for the subject. Expiry is issuedAt plus
// the configured TTL; a fresh token id (jti) supports later revocation.
func (tc *TokenCodec) Issue(subjectID string, role domain.Role, issuedAt time.Time) (string, time.Time, error) {
	expiresAt := issuedAt.Add(tc.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse validates a token and returns its claims. The wall clock is read
// exactly once and pinned for every time comparison in the check, so a
// token cannot straddle its own expiry mid-validation. No claim is
// trusted until the signature has verified.
func (tc *TokenCodec) Parse(tokenStr string) (*Claims, error) {
	now := tc.now()

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrSignatureInvalid
		}
		return tc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tc.skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, ErrMalformedToken
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// TTL returns the configured validity window.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}
