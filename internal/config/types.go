package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the non-secret runtime configuration, read from YAML
type Config struct {
	GRPCAddress string          `json:"grpcAddress"`
	Currency    CurrencyConfig  `json:"currency"`
	Scheduler   SchedulerConfig `json:"scheduler"`
	Providers   ProvidersConfig `json:"providers"`
}

type CurrencyConfig struct {
	Pivot   string   `json:"pivot"`
	RateTTL Duration `json:"rateTTL"`
	// PrecisionTolerance is the round-trip drift above which a conversion is reported
	PrecisionTolerance float64  `json:"precisionTolerance"`
	RateTimeout        Duration `json:"rateTimeout"`
}

type SchedulerConfig struct {
	// Enabled is a pointer so an explicit false survives the merge with defaults
	Enabled           *bool    `json:"enabled"`
	CheckInterval     Duration `json:"checkInterval"`
	BaseInterval      Duration `json:"baseInterval"`
	MinSpacing        Duration `json:"minSpacing"`
	SyncInterval      Duration `json:"syncInterval"`
	QuoteTimeout      Duration `json:"quoteTimeout"`
	ForceRefreshDelay Duration `json:"forceRefreshDelay"`
	ErrorLogSize      int      `json:"errorLogSize"`
}

// IsEnabled reports the enabled flag, defaulting to true
func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type ProvidersConfig struct {
	RatesURL string `json:"ratesURL"`
	QuoteURL string `json:"quoteURL"`
}

// Secrets holds credentials; read from an ejson file and the environment
type Secrets struct {
	QuoteAPIToken string `json:"quoteApiToken" env:"WEALTHFLOW_QUOTE_API_TOKEN"`
	AuthToken     string `json:"authToken" env:"WEALTHFLOW_AUTH_TOKEN"`
	DatabaseURL   string `json:"databaseUrl" env:"DATABASE_URL"`
}

// Duration is a time.Duration written as a string ("10s", "3m") in config files
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
