package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadBytes parses an in-memory config document.
func loadBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// ApplyDefaults fills unset fields of cfg with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Shop.PermissionPrefix == "" {
		cfg.Shop.PermissionPrefix = "signshop"
	}
	if cfg.Shop.CurrencyName == "" {
		cfg.Shop.CurrencyName = "coins"
	}
	if cfg.Shop.CurrencyItem == "" {
		cfg.Shop.CurrencyItem = "gold_ingot"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMemory
	}
	if cfg.Storage.Backend == StorageFile && cfg.Storage.Path == "" {
		cfg.Storage.Path = "signshops.yaml"
	}
	if cfg.Storage.Breaker.MaxFailures == 0 {
		cfg.Storage.Breaker.MaxFailures = 3
	}
	if cfg.Storage.Breaker.ResetTimeout == 0 {
		cfg.Storage.Breaker.ResetTimeout = 30 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "signshop"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Shop
	if strings.ContainsAny(cfg.Shop.PermissionPrefix, " .") {
		errs = append(errs, fmt.Errorf("shop.permission_prefix %q must not contain spaces or dots", cfg.Shop.PermissionPrefix))
	}
	if strings.ContainsAny(cfg.Shop.CurrencyItem, " ") {
		errs = append(errs, fmt.Errorf("shop.currency_item %q must not contain spaces", cfg.Shop.CurrencyItem))
	}

	// Storage
	switch {
	case cfg.Storage.Backend == "":
	case !cfg.Storage.Backend.IsValid():
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, file, postgres", cfg.Storage.Backend))
	case cfg.Storage.Backend == StorageFile && cfg.Storage.Path == "":
		errs = append(errs, errors.New("storage.path is required when backend is file"))
	case cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "":
		errs = append(errs, errors.New("storage.postgres_dsn is required when backend is postgres"))
	}
	if cfg.Storage.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("storage.breaker.max_failures %d must not be negative", cfg.Storage.Breaker.MaxFailures))
	}
	if cfg.Storage.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("storage.breaker.reset_timeout %s must not be negative", cfg.Storage.Breaker.ResetTimeout))
	}
	if cfg.Storage.FallbackPath != "" && cfg.Storage.FallbackPath == cfg.Storage.Path {
		errs = append(errs, errors.New("storage.fallback_path must differ from storage.path"))
	}
	if cfg.Storage.Backend == StorageMemory {
		slog.Warn("storage.backend is memory; shops will not survive a restart")
	}

	return errors.Join(errs...)
}
