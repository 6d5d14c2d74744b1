package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	grpcadapter "github.com/simaogato/wealthflow-core/internal/adapter/grpc"
	"github.com/simaogato/wealthflow-core/internal/adapter/notify"
	"github.com/simaogato/wealthflow-core/internal/adapter/provider/quoteapi"
	"github.com/simaogato/wealthflow-core/internal/adapter/provider/ratesapi"
	"github.com/simaogato/wealthflow-core/internal/adapter/repository/memory"
	"github.com/simaogato/wealthflow-core/internal/adapter/repository/postgres"
	"github.com/simaogato/wealthflow-core/internal/config"
	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/simaogato/wealthflow-core/internal/usecase/currency"
	"github.com/simaogato/wealthflow-core/internal/usecase/emergency"
	"github.com/simaogato/wealthflow-core/internal/usecase/investment"
	"github.com/simaogato/wealthflow-core/internal/usecase/quotes"
)

const defaultAPIToken = "dev-token"

func main() {
	configFile := flag.String("config", "config.yaml", "path to the YAML config file")
	secretsFile := flag.String("secrets", "secrets.ejson", "path to the ejson secrets file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configFile, *secretsFile, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configFile, secretsFile string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Configuration
	loader := config.Loader{ConfigFile: configFile, SecretsFile: secretsFile, Logger: logger}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	secrets, err := loader.LoadSecrets()
	if err != nil {
		return err
	}
	apiToken := secrets.AuthToken
	if apiToken == "" {
		logger.Warn("no auth token configured, using the development token")
		apiToken = defaultAPIToken
	}

	// 2. State store (Postgres when a database is configured)
	store, closeStore, err := openStore(ctx, secrets.DatabaseURL, cfg.Currency.Pivot, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Event bus, gRPC health and event streams
	grpcServer := grpcadapter.NewServer(apiToken, logger)
	bus, err := notify.New(
		notify.WithContext(ctx),
		notify.WithLogger(logger),
		notify.WithHandler(notify.LogHandler(logger)),
		notify.WithHandler(grpcServer.HandleEvent),
	)
	if err != nil {
		return err
	}
	if err := bus.Start(); err != nil {
		return err
	}

	// 4. Core services
	converter := currency.NewConverter(
		ratesapi.NewClient(cfg.Providers.RatesURL),
		store,
		currency.WithPivot(cfg.Currency.Pivot),
		currency.WithRateTTL(cfg.Currency.RateTTL.Std()),
		currency.WithPrecisionTolerance(cfg.Currency.PrecisionTolerance),
		currency.WithRateTimeout(cfg.Currency.RateTimeout.Std()),
		currency.WithLogger(logger),
		currency.WithPublisher(bus),
	)
	defer converter.Close()

	synchronizer := emergency.NewSynchronizer(store, converter,
		emergency.WithPublisher(bus),
		emergency.WithLogger(logger),
	)
	if _, err := synchronizer.Sync(ctx); err != nil {
		return err
	}
	// a base-currency switch rewrites every amount, so the mirror is recomputed afterwards
	bus.Subscribe(func(ctx context.Context, event domain.Event) error {
		if event.Type != domain.EventConversionCompleted {
			return nil
		}
		_, err := synchronizer.Sync(ctx)
		return err
	})

	scheduler, err := quotes.NewScheduler(
		quotes.WithStore(store),
		quotes.WithQuoteProvider(quoteapi.NewClient(cfg.Providers.QuoteURL, secrets.QuoteAPIToken, logger)),
		quotes.WithConverter(converter),
		quotes.WithPublisher(bus),
		quotes.WithLogger(logger),
		quotes.WithConfig(schedulerConfig(cfg.Scheduler)),
	)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	// 5. gRPC server; adding a tracked asset wakes an idle scheduler
	grpcServer.RegisterControl(&grpcadapter.Control{
		Refresher: scheduler,
		Switcher:  converter,
		Assets:    investment.NewInvestmentService(store, scheduler),
	})
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return err
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	case err := <-serveErr:
		return err
	}

	grpcServer.GracefulStop()
	<-bus.Done()
	logger.Info("gRPC server stopped", "droppedEvents", bus.Dropped())
	return nil
}

func openStore(ctx context.Context, databaseURL, pivot string, logger *slog.Logger) (domain.StateStore, func(), error) {
	initial := &domain.State{Settings: domain.Settings{Currency: pivot}}
	if databaseURL == "" {
		logger.Info("no database configured, keeping state in memory")
		return memory.NewStateStore(initial), func() {}, nil
	}

	db, err := postgres.NewDB(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db, initial); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewStateRepository(db), func() { db.Close() }, nil
}

func schedulerConfig(c config.SchedulerConfig) quotes.Config {
	return quotes.Config{
		Enabled:           c.IsEnabled(),
		CheckInterval:     c.CheckInterval.Std(),
		BaseInterval:      c.BaseInterval.Std(),
		MinSpacing:        c.MinSpacing.Std(),
		SyncInterval:      c.SyncInterval.Std(),
		QuoteTimeout:      c.QuoteTimeout.Std(),
		ForceRefreshDelay: c.ForceRefreshDelay.Std(),
		ErrorLogSize:      c.ErrorLogSize,
	}
}
