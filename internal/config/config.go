package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
)

const (
	// ConfigEnvVar holds a whole YAML config; it takes precedence over the config file
	ConfigEnvVar = "WEALTHFLOW_CONFIG"
	// EjsonKeyEnvVar names a file holding the ejson private key
	EjsonKeyEnvVar = "WEALTHFLOW_EJSON_SECRET_KEY"

	DefaultEjsonKeyDir = "/opt/ejson/keys"
)

// Default returns the reference configuration
func Default() *Config {
	enabled := true
	return &Config{
		GRPCAddress: ":8080",
		Currency: CurrencyConfig{
			Pivot:              "USD",
			RateTTL:            Duration(5 * time.Minute),
			PrecisionTolerance: 0.005,
			RateTimeout:        Duration(10 * time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:           &enabled,
			CheckInterval:     Duration(10 * time.Second),
			BaseInterval:      Duration(3 * time.Minute),
			MinSpacing:        Duration(30 * time.Second),
			SyncInterval:      Duration(5 * time.Minute),
			QuoteTimeout:      Duration(10 * time.Second),
			ForceRefreshDelay: Duration(time.Second),
			ErrorLogSize:      10,
		},
		Providers: ProvidersConfig{
			RatesURL: "https://open.er-api.com/v6",
			QuoteURL: "https://finnhub.io/api/v1",
		},
	}
}

// Loader reads configuration and secrets from their sources
type Loader struct {
	ConfigFile  string
	SecretsFile string
	EjsonKeyDir string
	Logger      *slog.Logger
}

// Load reads the config and merges it over the defaults.
// A missing config file is not an error; the defaults are used.
func (l Loader) Load() (*Config, error) {
	raw, err := l.readRaw()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to merge config defaults: %w", err)
	}
	return cfg, nil
}

func (l Loader) readRaw() ([]byte, error) {
	if rawEnv := os.Getenv(ConfigEnvVar); rawEnv != "" {
		l.logger().Info("reading config from environment", "var", ConfigEnvVar)
		return []byte(rawEnv), nil
	}
	if l.ConfigFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(l.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger().Warn("config file not found, using defaults", "file", l.ConfigFile)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return raw, nil
}

// LoadSecrets reads secrets from the environment and the ejson file.
// Environment values win; the ejson file fills the gaps. Either source may be absent, not both.
func (l Loader) LoadSecrets() (*Secrets, error) {
	ejsonSecrets, ejsonErr := l.readEjsonSecrets()
	envSecrets, envErr := readEnvSecrets()

	switch {
	case ejsonErr == nil && envErr == nil:
		if err := mergo.Merge(envSecrets, *ejsonSecrets); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
		return envSecrets, nil
	case ejsonErr != nil && envErr == nil:
		if l.SecretsFile != "" {
			l.logger().Warn("failed to read ejson secrets", "file", l.SecretsFile, "error", ejsonErr)
		}
		return envSecrets, nil
	case ejsonErr == nil && envErr != nil:
		l.logger().Warn("failed to parse env secrets", "error", envErr)
		return ejsonSecrets, nil
	default:
		return nil, fmt.Errorf("failed to parse secrets, ejson: %v, env: %w", ejsonErr, envErr)
	}
}

func (l Loader) readEjsonSecrets() (*Secrets, error) {
	if l.SecretsFile == "" {
		return nil, errors.New("no secrets file configured")
	}

	key := ""
	if keyFile := os.Getenv(EjsonKeyEnvVar); keyFile != "" {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, err
		}
		key = string(raw)
	}
	keyDir := l.EjsonKeyDir
	if keyDir == "" {
		keyDir = DefaultEjsonKeyDir
	}

	raw, err := ejson.DecryptFile(l.SecretsFile, keyDir, key)
	if err != nil {
		return nil, err
	}
	secrets := &Secrets{}
	if err := json.Unmarshal(raw, secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}

func readEnvSecrets() (*Secrets, error) {
	secrets := &Secrets{}
	err := env.Parse(secrets)
	return secrets, err
}

func (l Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
