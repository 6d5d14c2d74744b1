package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/simaogato/wealthflow-core/internal/adapter/provider/quoteapi"
	"github.com/simaogato/wealthflow-core/internal/adapter/provider/ratesapi"
	"github.com/simaogato/wealthflow-core/internal/adapter/repository/memory"
	"github.com/simaogato/wealthflow-core/internal/adapter/repository/postgres"
	"github.com/simaogato/wealthflow-core/internal/config"
	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/simaogato/wealthflow-core/internal/usecase/currency"
)

var errNoDatabase = errors.New("no database configured (set DATABASE_URL or databaseUrl in the secrets file)")

// environment carries what every command needs: config, secrets, output and a store opener
type environment struct {
	configFile  string
	secretsFile string
	out         io.Writer
	logger      *slog.Logger

	cfg     *config.Config
	secrets *config.Secrets

	// openStore is replaced in tests
	openStore func(ctx context.Context) (domain.StateStore, func(), error)
}

func (e *environment) load() error {
	if e.cfg != nil {
		return nil
	}
	loader := config.Loader{ConfigFile: e.configFile, SecretsFile: e.secretsFile, Logger: e.logger}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	secrets, err := loader.LoadSecrets()
	if err != nil {
		return err
	}
	e.cfg, e.secrets = cfg, secrets
	return nil
}

// store opens the persistent state; commands that change or read user data need one
func (e *environment) store(ctx context.Context) (domain.StateStore, func(), error) {
	if err := e.load(); err != nil {
		return nil, nil, err
	}
	if e.openStore != nil {
		return e.openStore(ctx)
	}
	if e.secrets.DatabaseURL == "" {
		return nil, nil, errNoDatabase
	}
	db, err := postgres.NewDB(ctx, e.secrets.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStateRepository(db), func() { db.Close() }, nil
}

// converter builds a conversion engine over store, pivoting through pivot (the configured one if empty)
func (e *environment) converter(store domain.StateStore, pivot string) *currency.Converter {
	if pivot == "" {
		pivot = e.cfg.Currency.Pivot
	}
	if store == nil {
		store = memory.NewStateStore(nil)
	}
	return currency.NewConverter(
		ratesapi.NewClient(e.cfg.Providers.RatesURL),
		store,
		currency.WithPivot(pivot),
		currency.WithRateTimeout(e.cfg.Currency.RateTimeout.Std()),
		currency.WithPrecisionTolerance(e.cfg.Currency.PrecisionTolerance),
		currency.WithLogger(e.logger),
	)
}

func (e *environment) quoteClient() *quoteapi.Client {
	return quoteapi.NewClient(e.cfg.Providers.QuoteURL, e.secrets.QuoteAPIToken, e.logger)
}
