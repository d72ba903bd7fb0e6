package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Port is the TCP port of the HTTP API.
	Port int `koanf:"port" validate:"required,gte=1,lt=65536"`

	// MaxConns caps concurrent HTTP connections.
	MaxConns int `koanf:"max_conns" validate:"gte=1"`

	// APIToken, when set, is required as a bearer token on admin routes.
	APIToken string `koanf:"api_token"`

	// Backend selects the option store: "bolt", "redis", or "memory".
	Backend string `koanf:"backend" validate:"required,oneof=bolt redis memory"`

	// DBPath is the bbolt database file.
	DBPath string `koanf:"db_path" validate:"required_if=Backend bolt"`

	// RedisAddr and RedisDB locate the redis server for the redis backend.
	RedisAddr string `koanf:"redis_addr" validate:"required_if=Backend redis,omitempty,host_port"`
	RedisDB   int    `koanf:"redis_db" validate:"gte=0"`

	// Scope is "site" (lists per site) or "network" (lists shared by all sites).
	Scope string `koanf:"scope" validate:"required,oneof=site network"`

	// SitesDir holds one file per site. Empty means a single default site.
	SitesDir string `koanf:"sites_dir"`

	// AdminEmail receives notifications for the default site.
	AdminEmail string `koanf:"admin_email" validate:"omitempty,email"`

	// SeedFile replaces the bundled seed list when set.
	SeedFile string `koanf:"seed_file"`

	// CacheSize is the option store LRU capacity; 0 disables the cache.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// FeedURL is the remote blocklist. Empty uses the community list.
	FeedURL string `koanf:"feed_url" validate:"omitempty,http_url"`

	// FetchTimeout bounds one remote list download.
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	// NotifyMode is "log" or "ses".
	NotifyMode string `koanf:"notify_mode" validate:"required,oneof=log ses"`

	// SES settings; the static key pair is optional and falls back to the
	// default AWS credential chain.
	SESRegion    string `koanf:"ses_region" validate:"required_if=NotifyMode ses"`
	SESAccessKey string `koanf:"ses_access_key" validate:"required_with=SESSecretKey"`
	SESSecretKey string `koanf:"ses_secret_key" validate:"required_with=SESAccessKey"`
	NotifyFrom   string `koanf:"notify_from" validate:"required_if=NotifyMode ses,omitempty,email"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:          "prod",
	LogLevel:     "info",
	Port:         8080,
	MaxConns:     256,
	Backend:      "bolt",
	DBPath:       "/var/lib/tempmail-gate/gate.db",
	RedisAddr:    "localhost:6379",
	RedisDB:      0,
	Scope:        "site",
	CacheSize:    1024,
	FetchTimeout: 30 * time.Second,
	NotifyMode:   "log",
}

// validHostPort validates "host:port" where host is an IP or a hostname and
// port is 1-65535.
func validHostPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" || port == "" {
		return false
	}
	if net.ParseIP(host) == nil && strings.ContainsAny(host, " /_:") {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "GATE_".
// It transforms the keys to lowercase and removes the prefix.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "GATE_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "GATE_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "host_port" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("host_port", validHostPort)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
