package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenLifetime is used when the configured lifetime is not positive
const DefaultTokenLifetime = 24 * time.Hour

// TokenServiceImpl implements the TokenService interface with HS256
type TokenServiceImpl struct {
	signingKey []byte
	lifetime   time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the clock used for issuance and verification
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(logger, "token")
	}
}

// NewTokenService creates a new TokenService from the process configuration.
// The signing key is copied, later changes to the config do not leak in.
func NewTokenService(cfg Config, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	key := cfg.GetSigningKey()
	if key == "" {
		return nil, errors.New("token signing key must not be empty", errors.CategoryInternal)
	}

	lifetime := cfg.GetTokenExpiration()
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}

	ts := &TokenServiceImpl{
		signingKey: []byte(key),
		lifetime:   lifetime,
		issuer:     cfg.GetIssuer(),
		logger:     NewLogger("token"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(ts)
	}

	return ts, nil
}

// Issue signs a token for the identity
func (ts *TokenServiceImpl) Issue(identity Identity) (*IssuedToken, error) {
	if identity == nil || identity.ID() == "" {
		return nil, errors.New("identity must not be empty", errors.CategoryInternal)
	}

	now := ts.now()
	expiresAt := now.Add(ts.lifetime)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      identity.ID(),
		UEmail:   identity.Email(),
		UserRole: identity.Role(),
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// It never touches storage.
func (ts *TokenServiceImpl) Verify(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("token rejected", "error", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if _, err := claims.UserUUID(); err != nil {
		ts.logger.Debug("token subject is not a valid id", "sub", claims.UserID())
		return nil, ErrTokenInvalid
	}

	if _, ok := ParseRole(claims.Role()); !ok {
		ts.logger.Debug("token carries an unknown role", "role", claims.Role())
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Lifetime returns the configured token lifetime
func (ts *TokenServiceImpl) Lifetime() time.Duration {
	return ts.lifetime
}
