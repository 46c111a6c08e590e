package jwtware

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/auth"
)

var defaultTokenLookup = "header:" + router.HeaderAuthorization

// TokenResolver turns a raw token into the active user it names
type TokenResolver interface {
	ResolveToken(ctx context.Context, raw string) (*auth.User, *auth.JWTClaims, error)
}

// ValidationListener is invoked after a token resolved to an active
// user and before the request proceeds.
type ValidationListener func(c router.Context, user *auth.User, claims *auth.JWTClaims) error

// ErrorHandler renders or replaces a guard error
type ErrorHandler func(c router.Context, err error) error

type Config struct {
	Filter func(router.Context) bool
	// ErrorHandler defaults to returning the error so the app error
	// handler renders it
	ErrorHandler ErrorHandler
	Resolver     TokenResolver
	ContextKey   string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// header:Authorization,query:token
	TokenLookup         string
	AuthScheme          string
	ValidationListeners []ValidationListener
}

// New returns the authentication guard. On success the user is stored
// in the request store under ContextKey and in the request context.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if cfg.Filter != nil && cfg.Filter(c) {
				return next(c)
			}

			raw, err := ExtractRawToken(c, extractors)
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			user, claims, err := cfg.Resolver.ResolveToken(c.Context(), raw)
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			if err := cfg.runValidationListeners(c, user, claims); err != nil {
				return cfg.ErrorHandler(c, err)
			}

			c.Set(cfg.ContextKey, user)

			ctx := auth.WithContext(c.Context(), user)
			ctx = auth.WithClaimsContext(ctx, claims)
			c.SetContext(ctx)

			return next(c)
		}
	}
}

// Authorize allows the request through when the authenticated user has
// one of the given roles. It must run after New.
func Authorize(roles ...string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, ok := auth.FromContext(c.Context())
			if !ok {
				return auth.ErrMissingToken
			}

			if !auth.HasAnyRole(user.Role, roles...) {
				return auth.Forbidden("route", map[string]any{
					"required_roles": roles,
					"path":           c.Path(),
				})
			}
			return next(c)
		}
	}
}

// UserFromCtx returns the user stored by the guard
func UserFromCtx(c router.Context) (*auth.User, bool) {
	return auth.FromContext(c.Context())
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("AUTH: JWT middleware configuration: Resolver is required.")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ router.Context, err error) error {
			return err
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c router.Context, user *auth.User, claims *auth.JWTClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, user, claims); err != nil {
			return err
		}
	}
	return nil
}

// ExtractRawToken returns the first token any extractor finds
func ExtractRawToken(c router.Context, extractors []JWTExtractor) (string, error) {
	err := error(auth.ErrMissingToken)
	for _, extractor := range extractors {
		var raw string
		raw, err = extractor(c)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", err
}

type JWTExtractor func(c router.Context) (string, error)

// GetExtractors parses a token lookup. Unknown sources are skipped.
func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		}
	}

	return extractors
}

// jwtFromHeader expects "<scheme> <token>"
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c router.Context) (string, error) {
		a := c.Header(header)
		l := len(authScheme)
		if l == 0 {
			return "", auth.ErrMissingToken
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l+1:]); token != "" {
				return token, nil
			}
		}
		return "", auth.ErrMissingToken
	}
}

func jwtFromQuery(param string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", auth.ErrMissingToken
		}
		return token, nil
	}
}

func jwtFromParam(param string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param, "")
		if token == "" {
			return "", auth.ErrMissingToken
		}
		return token, nil
	}
}
