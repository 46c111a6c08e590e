package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindDuration
	kindMillis
)

type envVar struct {
	path string
	kind valueKind
}

// envVars maps the flat variable names to config paths
var envVars = map[string]envVar{
	"APP_ENV":                 {"app.env", kindString},
	"PORT":                    {"app.port", kindInt},
	"LOG_LEVEL":               {"app.log_level", kindString},
	"JWT_SECRET":              {"auth.signing_key", kindString},
	"JWT_EXPIRES_IN":          {"auth.expiration", kindDuration},
	"JWT_ISSUER":              {"auth.issuer", kindString},
	"BCRYPT_COST":             {"auth.bcrypt_cost", kindInt},
	"USER_ID_HASHID":          {"auth.use_hashid", kindBool},
	"DB_DRIVER":               {"database.driver", kindString},
	"DATABASE_URL":            {"database.url", kindString},
	"DB_DEBUG":                {"database.debug", kindBool},
	"DB_PING_TIMEOUT":         {"database.ping_timeout", kindDuration},
	"MONGODB_URI":             {"database.mongo_uri", kindString},
	"MONGODB_DATABASE":        {"database.mongo_database", kindString},
	"RATE_LIMIT_WINDOW_MS":    {"server.rate_limit_window", kindMillis},
	"RATE_LIMIT_MAX_REQUESTS": {"server.rate_limit_max", kindInt},
	"BODY_LIMIT":              {"server.body_limit", kindInt},
	"CORS_ORIGINS":            {"server.cors_origins", kindString},
	"SHUTDOWN_TIMEOUT":        {"server.shutdown_timeout", kindDuration},
}

// envProvider loads the process variables on top of defaults and files.
// Values are parsed here so a bad number is reported as a validation
// error naming the variable.
type envProvider struct {
	lookup LookupFunc
}

var _ gconfig.Provider = envProvider{}

// EnvProvider returns a provider reading the variables in envVars
func EnvProvider(lookup LookupFunc) gconfig.ProviderBuilder[*Config] {
	return func(*gconfig.Container[*Config]) (gconfig.Provider, error) {
		if lookup == nil {
			return nil, errors.New("env lookup is required", errors.CategoryInternal)
		}
		return envProvider{lookup: lookup}, nil
	}
}

func (envProvider) Type() gconfig.ProviderType { return gconfig.ProviderTypeEnv }

func (envProvider) Priority() int { return int(gconfig.PriorityEnv) }

func (envProvider) Validate() error { return nil }

func (p envProvider) Load(_ context.Context, k *koanf.Koanf) error {
	values := map[string]any{}
	failed := map[string]string{}

	for name, v := range envVars {
		raw, ok := p.lookup(name)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}

		value, err := parseValue(raw, v.kind)
		if err != nil {
			failed[name] = err.Error()
			continue
		}
		values[v.path] = value
	}

	if len(failed) > 0 {
		return errors.NewValidationFromMap("invalid configuration", failed)
	}

	merger := koanf.WithMergeFunc(gconfig.MergeWithBooleanPrecedence)
	if err := k.Load(confmap.Provider(values, "."), nil, merger); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load environment variables")
	}
	return nil
}

func parseValue(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid integer", raw)
		}
		return v, nil
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid boolean", raw)
		}
		return v, nil
	case kindDuration:
		return parseDuration(raw)
	case kindMillis:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid number of milliseconds", raw)
		}
		return time.Duration(v) * time.Millisecond, nil
	default:
		return raw, nil
	}
}

// parseDuration accepts Go durations plus a day suffix, e.g. "7d"
func parseDuration(raw string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid duration", raw)
	}
	return v, nil
}
