package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"

	// EnvConfigFile points Load at a JSON, YAML or TOML config file
	EnvConfigFile = "CONFIG_FILE"
)

type App struct {
	Env      string `koanf:"env" json:"env"`
	Port     int    `koanf:"port" json:"port"`
	LogLevel string `koanf:"log_level" json:"log_level"`
}

type Auth struct {
	SigningKey string `koanf:"signing_key" json:"signing_key" mask:"filled32"`
	// SigningKeyGenerated is set when no secret was configured and a
	// random one was created for this process
	SigningKeyGenerated bool          `koanf:"-" json:"signing_key_generated"`
	Expiration          time.Duration `koanf:"expiration" json:"expiration"`
	Issuer              string        `koanf:"issuer" json:"issuer"`
	AuthScheme          string        `koanf:"scheme" json:"scheme"`
	ContextKey          string        `koanf:"context_key" json:"context_key"`
	BcryptCost          int           `koanf:"bcrypt_cost" json:"bcrypt_cost"`
	// UseHashid derives user IDs from the registration email
	UseHashid bool `koanf:"use_hashid" json:"use_hashid"`
}

type Database struct {
	Driver        string        `koanf:"driver" json:"driver"`
	URL           string        `koanf:"url" json:"url"`
	Debug         bool          `koanf:"debug" json:"debug"`
	PingTimeout   time.Duration `koanf:"ping_timeout" json:"ping_timeout"`
	MongoURI      string        `koanf:"mongo_uri" json:"mongo_uri" mask:"filled32"`
	MongoDatabase string        `koanf:"mongo_database" json:"mongo_database"`
}

type Server struct {
	RateLimitWindow time.Duration `koanf:"rate_limit_window" json:"rate_limit_window"`
	RateLimitMax    int           `koanf:"rate_limit_max" json:"rate_limit_max"`
	BodyLimit       int           `koanf:"body_limit" json:"body_limit"`
	CORSOrigins     string        `koanf:"cors_origins" json:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// Config is the process configuration
type Config struct {
	App      App      `koanf:"app" json:"app"`
	Auth     Auth     `koanf:"auth" json:"auth"`
	Database Database `koanf:"database" json:"database"`
	Server   Server   `koanf:"server" json:"server"`
}

var _ auth.Config = (*Config)(nil)

// LookupFunc reads one variable, os.LookupEnv in production
type LookupFunc func(key string) (string, bool)

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		App: App{
			Env:      EnvDevelopment,
			Port:     5000,
			LogLevel: "info",
		},
		Auth: Auth{
			Expiration: auth.DefaultTokenLifetime,
			Issuer:     "go-tasks",
			AuthScheme: "Bearer",
			ContextKey: "user",
			BcryptCost: 12,
		},
		Database: Database{
			Driver:        DriverSQLite,
			URL:           "file:tasks.db?cache=shared",
			PingTimeout:   5 * time.Second,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "tasks",
		},
		Server: Server{
			RateLimitWindow: 15 * time.Minute,
			RateLimitMax:    100,
			BodyLimit:       10 * 1024 * 1024,
			CORSOrigins:     "*",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// NewContainer layers the defaults, the optional config files and the
// variables read through lookup, in that order.
func NewContainer(lookup LookupFunc, files ...string) *gconfig.Container[*Config] {
	providers := make([]gconfig.ProviderBuilder[*Config], 0, len(files)+1)
	for i, file := range files {
		if file == "" {
			continue
		}
		order := gconfig.PriorityConfig.WithOffset(i)
		providers = append(providers, gconfig.OptionalProvider(gconfig.FileProvider[*Config](file, int(order))))
	}
	providers = append(providers, EnvProvider(lookup))

	return gconfig.New(Defaults()).
		WithLogger(auth.NewLogger("config")).
		WithProvider(providers...).
		WithStringTransformerForKey("app.env", gconfig.ToLower).
		WithStringTransformerForKey("database.driver", gconfig.ToLower).
		WithNormalizer(generateDevSecret)
}

// Load reads optional .env files, the config file named by CONFIG_FILE
// (config/app.json by default) and then the process environment
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read env file")
	}

	path := gconfig.DefaultConfigFilepath
	if v, ok := os.LookupEnv(EnvConfigFile); ok && strings.TrimSpace(v) != "" {
		path = strings.TrimSpace(v)
	}

	return load(NewContainer(os.LookupEnv, path))
}

// FromEnv builds a Config from the given lookup, applying defaults
func FromEnv(lookup LookupFunc) (*Config, error) {
	return load(NewContainer(lookup))
}

func load(container *gconfig.Container[*Config]) (*Config, error) {
	if err := container.Load(context.Background()); err != nil {
		return nil, err
	}
	return container.Raw(), nil
}

func generateDevSecret(c *Config) error {
	if c.Auth.SigningKey == "" && c.IsDevelopment() {
		c.Auth.SigningKey = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		c.Auth.SigningKeyGenerated = true
	}
	return nil
}

func (c *Config) Validate() error {
	err := validation.Errors{
		"APP_ENV":                 validation.Validate(c.App.Env, validation.In(EnvDevelopment, EnvProduction, EnvTest)),
		"PORT":                    validation.Validate(c.App.Port, validation.Min(1), validation.Max(65535)),
		"JWT_SECRET":              validation.Validate(c.Auth.SigningKey, validation.Required),
		"JWT_EXPIRES_IN":          validation.Validate(c.Auth.Expiration, validation.Min(time.Second)),
		"DB_DRIVER":               validation.Validate(c.Database.Driver, validation.In(DriverSQLite, DriverMongoDB)),
		"DATABASE_URL":            validation.Validate(c.Database.URL, validation.When(c.Database.Driver == DriverSQLite, validation.Required)),
		"MONGODB_URI":             validation.Validate(c.Database.MongoURI, validation.When(c.Database.Driver == DriverMongoDB, validation.Required)),
		"RATE_LIMIT_WINDOW_MS":    validation.Validate(c.Server.RateLimitWindow, validation.Min(time.Millisecond)),
		"RATE_LIMIT_MAX_REQUESTS": validation.Validate(c.Server.RateLimitMax, validation.Min(1)),
		"BODY_LIMIT":              validation.Validate(c.Server.BodyLimit, validation.Min(1)),
	}.Filter()
	if err == nil {
		return nil
	}
	return errors.FromOzzoValidation(err, "invalid configuration")
}

func (c Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

func (c Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c Config) GetTokenExpiration() time.Duration {
	return c.Auth.Expiration
}

func (c Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c Config) GetAuthScheme() string {
	return c.Auth.AuthScheme
}

func (c Config) GetContextKey() string {
	return c.Auth.ContextKey
}
