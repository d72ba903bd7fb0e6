package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.Port)
	}
	if cfg.Backend != "bolt" || cfg.DBPath != "/var/lib/tempmail-gate/gate.db" {
		t.Errorf("unexpected store defaults: backend=%q db=%q", cfg.Backend, cfg.DBPath)
	}
	if cfg.Scope != "site" {
		t.Errorf("expected Scope=site, got %q", cfg.Scope)
	}
	if cfg.CacheSize != 1024 {
		t.Errorf("expected CacheSize=1024, got %d", cfg.CacheSize)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("expected FetchTimeout=30s, got %v", cfg.FetchTimeout)
	}
	if cfg.NotifyMode != "log" {
		t.Errorf("expected NotifyMode=log, got %q", cfg.NotifyMode)
	}
	if cfg.SitesDir != "" || cfg.SeedFile != "" {
		t.Errorf("expected empty sites dir and seed file by default")
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("GATE_ENV", "dev")
	t.Setenv("GATE_LOG_LEVEL", "debug")
	t.Setenv("GATE_PORT", "9090")
	t.Setenv("GATE_MAX_CONNS", "16")
	t.Setenv("GATE_BACKEND", "redis")
	t.Setenv("GATE_REDIS_ADDR", "cache.internal:6380")
	t.Setenv("GATE_REDIS_DB", "2")
	t.Setenv("GATE_SCOPE", "network")
	t.Setenv("GATE_SITES_DIR", "/etc/tempmail-gate/sites.d")
	t.Setenv("GATE_CACHE_SIZE", "0")
	t.Setenv("GATE_FETCH_TIMEOUT", "45s")
	t.Setenv("GATE_FEED_URL", "https://lists.example.com/disposable.txt")
	t.Setenv("GATE_NOTIFY_MODE", "ses")
	t.Setenv("GATE_SES_REGION", "us-east-1")
	t.Setenv("GATE_NOTIFY_FROM", "gate@example.com")
	t.Setenv("GATE_ADMIN_EMAIL", "ops@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected env/log level: %q %q", cfg.Env, cfg.LogLevel)
	}
	if cfg.Port != 9090 || cfg.MaxConns != 16 {
		t.Errorf("unexpected port/max conns: %d %d", cfg.Port, cfg.MaxConns)
	}
	if cfg.Backend != "redis" || cfg.RedisAddr != "cache.internal:6380" || cfg.RedisDB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg)
	}
	if cfg.Scope != "network" {
		t.Errorf("expected Scope=network, got %q", cfg.Scope)
	}
	if cfg.SitesDir != "/etc/tempmail-gate/sites.d" {
		t.Errorf("unexpected SitesDir %q", cfg.SitesDir)
	}
	if cfg.CacheSize != 0 {
		t.Errorf("expected CacheSize=0, got %d", cfg.CacheSize)
	}
	if cfg.FetchTimeout != 45*time.Second {
		t.Errorf("expected FetchTimeout=45s, got %v", cfg.FetchTimeout)
	}
	if cfg.FeedURL != "https://lists.example.com/disposable.txt" {
		t.Errorf("unexpected FeedURL %q", cfg.FeedURL)
	}
	if cfg.NotifyMode != "ses" || cfg.SESRegion != "us-east-1" || cfg.NotifyFrom != "gate@example.com" {
		t.Errorf("unexpected notify config: %+v", cfg)
	}
	if cfg.AdminEmail != "ops@example.com" {
		t.Errorf("unexpected AdminEmail %q", cfg.AdminEmail)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"env", map[string]string{"GATE_ENV": "staging"}},
		{"log level", map[string]string{"GATE_LOG_LEVEL": "trace"}},
		{"port range", map[string]string{"GATE_PORT": "99999"}},
		{"port nan", map[string]string{"GATE_PORT": "not_a_number"}},
		{"backend", map[string]string{"GATE_BACKEND": "mysql"}},
		{"bolt without path", map[string]string{"GATE_DB_PATH": ""}},
		{"redis bad addr", map[string]string{"GATE_BACKEND": "redis", "GATE_REDIS_ADDR": "nocolon"}},
		{"scope", map[string]string{"GATE_SCOPE": "galaxy"}},
		{"cache size", map[string]string{"GATE_CACHE_SIZE": "-1"}},
		{"fetch timeout", map[string]string{"GATE_FETCH_TIMEOUT": "0s"}},
		{"feed url", map[string]string{"GATE_FEED_URL": "not a url"}},
		{"ses without region", map[string]string{"GATE_NOTIFY_MODE": "ses", "GATE_NOTIFY_FROM": "a@example.com"}},
		{"ses without sender", map[string]string{"GATE_NOTIFY_MODE": "ses", "GATE_SES_REGION": "us-east-1"}},
		{"half key pair", map[string]string{"GATE_SES_ACCESS_KEY": "AKIA"}},
		{"admin email", map[string]string{"GATE_ADMIN_EMAIL": "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %v", tt.env)
			}
		})
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults, got nil")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env, got nil")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatal("expected error when registering validation, got nil")
	}
}

func TestValidHostPort(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"localhost:6379", true},
		{"127.0.0.1:6379", true},
		{"[::1]:6379", true},
		{"redis.internal:6380", true},
		{"::1:6379", false},
		{"localhost:", false},
		{":6379", false},
		{"localhost:notaport", false},
		{"localhost:0", false},
		{"localhost:70000", false},
		{"bad host:6379", false},
		{"", false},
		{"localhost", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("host_port", validHostPort)

	type S struct {
		Addr string `validate:"host_port"`
	}
	for _, tc := range cases {
		err := validate.Struct(S{Addr: tc.input})
		if tc.expected && err != nil {
			t.Errorf("validHostPort(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validHostPort(%q) = true, want false", tc.input)
		}
	}
}

func TestDefaultLoader_LoadsDefaults(t *testing.T) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		t.Fatalf("defaultLoader returned error: %v", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if cfg.Env != DEFAULT_APP_CONFIG.Env {
		t.Errorf("expected Env=%q, got %q", DEFAULT_APP_CONFIG.Env, cfg.Env)
	}
	if cfg.Port != DEFAULT_APP_CONFIG.Port {
		t.Errorf("expected Port=%d, got %d", DEFAULT_APP_CONFIG.Port, cfg.Port)
	}
	if cfg.FetchTimeout != DEFAULT_APP_CONFIG.FetchTimeout {
		t.Errorf("expected FetchTimeout=%v, got %v", DEFAULT_APP_CONFIG.FetchTimeout, cfg.FetchTimeout)
	}
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()

	DEFAULT_APP_CONFIG.Backend = "redis"
	DEFAULT_APP_CONFIG.RedisAddr = "not_a_host_port"

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for invalid default redis address")
	}
}
