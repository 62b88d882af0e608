package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "PIZZAPI"

// Config holds server configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr     string
	Debug    bool
	LogLevel string

	// Store selects the shared directory backend.
	Store        string
	DatabasePath string
	RedisURL     string
	// RedisPrefix namespaces keys when several deployments share one redis.
	RedisPrefix string

	JWTSecret      string
	APIKeys        []string
	AllowedOrigins []string
	// PublicURL is the base for share URLs handed to agents.
	PublicURL string

	EphemeralTTL   time.Duration
	HeartbeatGrace time.Duration
	PruneInterval  time.Duration
	SpawnTimeout   time.Duration
	PingInterval   time.Duration
	PingTimeout    time.Duration
}

// Overrides optionally overrides values from the environment or config file.
//
// A nil pointer means "use the environment/default value".
type Overrides struct {
	ConfigFile   *string
	Addr         *string
	Debug        *bool
	LogLevel     *string
	Store        *string
	DatabasePath *string
	RedisURL     *string
	JWTSecret    *string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":3001")
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("database_path", "./pizzapi.db")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("redis_prefix", "pizzapi:")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("api_keys", []string{})
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("public_url", "http://localhost:3001")
	v.SetDefault("ephemeral_ttl", 10*time.Minute)
	v.SetDefault("heartbeat_grace", 2*time.Minute)
	v.SetDefault("prune_interval", 30*time.Second)
	v.SetDefault("spawn_timeout", 30*time.Second)
	v.SetDefault("ping_interval", 5*time.Second)
	v.SetDefault("ping_timeout", 15*time.Second)
}

// Load loads configuration from defaults, an optional config file
// (PIZZAPI_CONFIG), PIZZAPI_* environment variables, and finally explicit
// overrides.
func Load(overrides Overrides) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := os.Getenv(EnvPrefix + "_CONFIG")
	if overrides.ConfigFile != nil {
		configFile = *overrides.ConfigFile
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Addr:           v.GetString("addr"),
		Debug:          v.GetBool("debug"),
		LogLevel:       v.GetString("log_level"),
		Store:          strings.ToLower(v.GetString("store")),
		DatabasePath:   v.GetString("database_path"),
		RedisURL:       v.GetString("redis_url"),
		RedisPrefix:    v.GetString("redis_prefix"),
		JWTSecret:      v.GetString("jwt_secret"),
		APIKeys:        splitList(v.GetStringSlice("api_keys")),
		AllowedOrigins: splitList(v.GetStringSlice("allowed_origins")),
		PublicURL:      strings.TrimRight(v.GetString("public_url"), "/"),
		EphemeralTTL:   v.GetDuration("ephemeral_ttl"),
		HeartbeatGrace: v.GetDuration("heartbeat_grace"),
		PruneInterval:  v.GetDuration("prune_interval"),
		SpawnTimeout:   v.GetDuration("spawn_timeout"),
		PingInterval:   v.GetDuration("ping_interval"),
		PingTimeout:    v.GetDuration("ping_timeout"),
	}
	applyOverrides(cfg, overrides)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.Addr != nil {
		cfg.Addr = *o.Addr
	}
	if o.Debug != nil {
		cfg.Debug = *o.Debug
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
	if o.Store != nil {
		cfg.Store = strings.ToLower(*o.Store)
	}
	if o.DatabasePath != nil {
		cfg.DatabasePath = *o.DatabasePath
	}
	if o.RedisURL != nil {
		cfg.RedisURL = *o.RedisURL
	}
	if o.JWTSecret != nil {
		cfg.JWTSecret = *o.JWTSecret
	}
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET environment variable is required", EnvPrefix)
	}
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or redis)", c.Store)
	}
	for name, d := range map[string]time.Duration{
		"ephemeral_ttl":  c.EphemeralTTL,
		"prune_interval": c.PruneInterval,
		"spawn_timeout":  c.SpawnTimeout,
		"ping_interval":  c.PingInterval,
		"ping_timeout":   c.PingTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.HeartbeatGrace < 0 {
		return fmt.Errorf("heartbeat_grace must not be negative")
	}
	return nil
}

// splitList flattens comma separated entries, which is how lists arrive
// from environment variables.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
