// Package config loads service configuration from defaults, an optional
// config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the service configuration.
type Config struct {
	Env       string          `mapstructure:"env"` // development, production
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Mongo     MongoConfig     `mapstructure:"mongodb"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	TLS       TLSConfig       `mapstructure:"tls"`
	Log       LogConfig       `mapstructure:"log"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig configures the health listener.
type GRPCConfig struct {
	Port           string        `mapstructure:"port"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

// MongoConfig configures the document store.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// JWTConfig configures token signing. Keys has the form kid:secret,kid2:secret2.
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	Keys      string        `mapstructure:"keys"`
	ActiveKid string        `mapstructure:"active_kid"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig limits register/login attempts per client.
type RateLimitConfig struct {
	RPM   int `mapstructure:"rpm"`
	Burst int `mapstructure:"burst"`
}

// TLSConfig holds certificate paths for the gRPC listener.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	Require  bool   `mapstructure:"require"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables deployments use.
var envBindings = map[string]string{
	"env":                   "APP_ENV",
	"http.port":             "PORT",
	"grpc.port":             "GRPC_PORT",
	"mongodb.uri":           "MONGODB_URI",
	"mongodb.database":      "MONGODB_DATABASE",
	"jwt.secret":            "JWT_SECRET",
	"jwt.keys":              "JWT_KEYS",
	"jwt.active_kid":        "JWT_ACTIVE_KID",
	"jwt.ttl":               "JWT_TTL",
	"rate_limit.rpm":        "RATE_LIMIT_RPM",
	"rate_limit.burst":      "RATE_LIMIT_BURST",
	"tls.cert_file":         "TLS_CERT",
	"tls.key_file":          "TLS_KEY",
	"tls.require":           "REQUIRE_TLS",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
	"http.shutdown_timeout": "SHUTDOWN_TIMEOUT",
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStore reads the configuration for tools that only need the database.
func LoadStore() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.Mongo.URI == "" {
		return nil, errors.New("MONGODB_URI must be set")
	}
	return cfg, nil
}

func read() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("grpc.port", "50051")
	v.SetDefault("grpc.health_interval", "15s")

	v.SetDefault("mongodb.database", "startsmart")

	v.SetDefault("jwt.ttl", "24h")

	// small burst allows a couple of quick retries
	v.SetDefault("rate_limit.rpm", 10)
	v.SetDefault("rate_limit.burst", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.JWT.Secret == "" && c.JWT.Keys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.JWT.Keys != "" {
		if _, err := c.JWT.KeyMap(); err != nil {
			return err
		}
	}
	if c.TLS.Require && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	return nil
}

// Production reports whether internal error details must be hidden.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// KeyMap parses Keys into kid -> secret.
func (j JWTConfig) KeyMap() (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(j.Keys, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	if len(keys) == 0 {
		return nil, errors.New("JWT_KEYS contains no keys")
	}
	return keys, nil
}
