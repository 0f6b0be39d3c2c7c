package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trademaestro/config"
	"trademaestro/internal/adapters/binancedata"
	"trademaestro/internal/adapters/logger"
	"trademaestro/internal/adapters/sim"
	"trademaestro/internal/adapters/sqlite"
	"trademaestro/internal/analytics"
	"trademaestro/internal/engine"
	"trademaestro/internal/orders"
	"trademaestro/internal/ports"
	"trademaestro/internal/risk"
	"trademaestro/internal/scheduler"
	"trademaestro/internal/strategy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info(ctx, "Starting TradeMaestro", map[string]interface{}{
		"strategy":    cfg.Strategy,
		"symbols":     cfg.Symbols,
		"interval":    cfg.Interval.String(),
		"data_source": cfg.DataSource,
	})

	// The paper gateway backs account state and order execution; market data
	// optionally comes from Binance instead of the simulated walk.
	gateway := sim.NewGateway(cfg.SimSeed)
	var data ports.MarketDataProvider = gateway
	if cfg.DataSource == "binance" {
		client, err := binancedata.New(binancedata.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			return fmt.Errorf("creating Binance data client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("checking Binance connectivity: %w", err)
		}
		data = client
	}

	store, err := sqlite.NewTradeStore(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return fmt.Errorf("creating trade store: %w", err)
	}
	defer store.Close()

	manager, err := orders.NewManager(gateway, gateway, store, appLogger)
	if err != nil {
		return fmt.Errorf("creating order manager: %w", err)
	}

	gatekeeper, err := risk.NewGatekeeper(cfg.Risk, gateway, cfg.DefaultLot, appLogger)
	if err != nil {
		return fmt.Errorf("creating risk gatekeeper: %w", err)
	}

	factory := func(name string) (*engine.Engine, error) {
		strat, err := strategy.New(name, strategy.Deps{
			Account:   gateway,
			Logger:    appLogger,
			Overrides: cfg.Overrides,
		})
		if err != nil {
			return nil, err
		}
		return engine.New(strat, data, gatekeeper, manager, appLogger, cfg.Symbols)
	}

	sched, err := scheduler.New(factory, cfg.Interval, appLogger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if err := sched.Start(ctx, cfg.Strategy); err != nil {
		return fmt.Errorf("starting strategy %q (available: %v): %w", cfg.Strategy, strategy.Available(), err)
	}

	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutdown signal received")

	shutdownCtx := context.Background()
	sched.Stop(shutdownCtx)

	closed, failed, err := manager.CloseAll(shutdownCtx, "Shutdown")
	if err != nil {
		appLogger.Error(shutdownCtx, err, "Errors while closing positions on shutdown")
	}
	appLogger.Info(shutdownCtx, "Positions closed on shutdown", map[string]interface{}{"closed": closed, "failed": failed})

	trades, err := store.FindAll(shutdownCtx)
	if err != nil {
		appLogger.Error(shutdownCtx, err, "Failed to load trades for final report")
		return nil
	}
	analytics.WriteReport(os.Stdout, trades)
	return nil
}
