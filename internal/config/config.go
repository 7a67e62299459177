package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment variables read as configuration.
// SECRETS_MONGO_URI maps to mongo.uri.
const EnvPrefix = "SECRETS_"

// Store and session drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config holds all service configuration.
type Config struct {
	HTTP struct {
		Addr           string   `koanf:"addr"`
		AllowedOrigins []string `koanf:"allowed_origins"`
	} `koanf:"http"`

	Store struct {
		Driver string `koanf:"driver"`
	} `koanf:"store"`

	Mongo struct {
		URI      string `koanf:"uri"`
		Database string `koanf:"database"`
	} `koanf:"mongo"`

	Postgres struct {
		DSN string `koanf:"dsn"`
	} `koanf:"postgres"`

	Session struct {
		Driver       string        `koanf:"driver"`
		TTL          time.Duration `koanf:"ttl"`
		SecureCookie bool          `koanf:"secure_cookie"`
	} `koanf:"session"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Google struct {
		ClientID     string `koanf:"client_id"`
		ClientSecret string `koanf:"client_secret"`
		CallbackURL  string `koanf:"callback_url"`
	} `koanf:"google"`

	Assets struct {
		Dir string `koanf:"dir"`
	} `koanf:"assets"`

	Minio struct {
		Endpoint  string `koanf:"endpoint"`
		AccessKey string `koanf:"access_key"`
		SecretKey string `koanf:"secret_key"`
		Bucket    string `koanf:"bucket"`
		UseSSL    bool   `koanf:"use_ssl"`
	} `koanf:"minio"`

	Auth struct {
		BcryptCost int `koanf:"bcrypt_cost"`
	} `koanf:"auth"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
}

// GoogleEnabled reports whether federated login is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// MinioEnabled reports whether assets come from an object store.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != ""
}

// RegisterFlags defines every configuration key as a flag. Flag defaults
// are the configuration defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http.addr", ":3000", "HTTP listen address")
	fs.StringSlice("http.allowed_origins", nil, "CORS origins allowed to send credentials")
	fs.String("store.driver", DriverMongo, "credential store: mongo, postgres or memory")
	fs.String("mongo.uri", "mongodb://localhost:27017", "MongoDB connection URI")
	fs.String("mongo.database", "secrets", "MongoDB database name")
	fs.String("postgres.dsn", "", "PostgreSQL DSN")
	fs.String("session.driver", DriverRedis, "session backend: redis or memory")
	fs.Duration("session.ttl", 24*time.Hour, "session lifetime")
	fs.Bool("session.secure_cookie", false, "mark cookies Secure")
	fs.String("redis.addr", "localhost:6379", "Redis address")
	fs.String("redis.password", "", "Redis password")
	fs.String("google.client_id", "", "Google OAuth client id (empty disables Google login)")
	fs.String("google.client_secret", "", "Google OAuth client secret")
	fs.String("google.callback_url", "http://localhost:3000/auth/google/secrets", "Google OAuth redirect URL")
	fs.String("assets.dir", "public", "local static asset directory, used when MinIO is not configured")
	fs.String("minio.endpoint", "", "MinIO endpoint for static assets (empty serves assets.dir)")
	fs.String("minio.access_key", "", "MinIO access key")
	fs.String("minio.secret_key", "", "MinIO secret key")
	fs.String("minio.bucket", "secrets-public", "MinIO bucket holding static assets")
	fs.Bool("minio.use_ssl", false, "use TLS for MinIO")
	fs.Int("auth.bcrypt_cost", 10, "bcrypt work factor")
	fs.String("log.level", "info", "log level")
	fs.String("log.format", "json", "log format: json or console")
}

// Load reads configuration from an optional YAML file, then SECRETS_*
// environment variables, then flags. Later sources win; unset flags only
// fill keys no other source provided.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "env").Wrap(err)
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("source", "flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps SECRETS_HTTP_ALLOWED_ORIGINS to http.allowed_origins. The
// first underscore separates the section from the key.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.Replace(key, "_", ".", 1)
	if key == "http.allowed_origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return key, origins
	}
	return key, value
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").Errorf(format, args...)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr is required")
	}
	switch c.Store.Driver {
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return invalid("mongo.uri and mongo.database are required for the mongo store")
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return invalid("postgres.dsn is required for the postgres store")
		}
	case DriverMemory:
	default:
		return invalid("store.driver must be %q, %q or %q, got %q", DriverMongo, DriverPostgres, DriverMemory, c.Store.Driver)
	}
	switch c.Session.Driver {
	case DriverRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr is required for the redis session backend")
		}
	case DriverMemory:
	default:
		return invalid("session.driver must be %q or %q, got %q", DriverRedis, DriverMemory, c.Session.Driver)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl must be positive")
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		return invalid("google.client_id and google.client_secret must be set together")
	}
	if c.GoogleEnabled() && c.Google.CallbackURL == "" {
		return invalid("google.callback_url is required when Google login is enabled")
	}
	if c.MinioEnabled() && c.Minio.Bucket == "" {
		return invalid("minio.bucket is required when minio.endpoint is set")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return invalid("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("addr=%s store=%s session=%s google=%t minio=%t",
		c.HTTP.Addr, c.Store.Driver, c.Session.Driver, c.GoogleEnabled(), c.MinioEnabled())
}
