package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/config"
	"papertrade/internal/cost"
	"papertrade/internal/engine"
	"papertrade/internal/httpapi"
	"papertrade/internal/marketdata"
	"papertrade/internal/risk"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
	"papertrade/internal/strategy/builtins"
	"papertrade/internal/task"
	"papertrade/internal/util"
)

func main() {
	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = "" // run on defaults plus env overrides
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Storage.
	barStore := store.NewParquetStore(cfg.Storage.DataDir)
	sqliteStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer sqliteStore.Close()

	// Core trading stack. The broker preset is already folded into cfg.Cost
	// by config.Load when no explicit cost section was given.
	calc := cost.NewCalculator(cfg.Cost)
	accounts := account.NewRegistry(calc)
	if _, err := accounts.Create(cfg.Trading.DefaultAccountID, cfg.Trading.InitialBalance); err != nil {
		log.Fatalf("creating default account: %v", err)
	}

	gate, err := risk.NewGate(cfg.Risk, accounts, risk.DefaultIndustryMap())
	if err != nil {
		log.Fatalf("building risk gate: %v", err)
	}
	gate.SetCalendar(util.NewTradingCalendar())

	eng := engine.New(accounts, gate, sqliteStore, logger)

	// Strategies and backtesting.
	strategies := strategy.NewRegistry()
	smaCross, err := builtins.NewSMACross(5, 20)
	if err != nil {
		log.Fatalf("building sma-cross: %v", err)
	}
	strategies.Register(smaCross)
	backtester := strategy.NewBacktester(barStore, strategies, calc)

	tasks := task.NewManager(logger)

	// Optional market data feed.
	var feed marketdata.PriceFeed
	if cfg.Alpaca.APIKey != "" {
		feed = marketdata.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.MarketData.RateLimitPerMin)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if feed != nil {
		poller := marketdata.NewPoller(feed, accounts, cfg.MarketData.PollInterval, logger)
		go func() {
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("price poller stopped", "error", err)
			}
		}()
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Accounts:   accounts,
		Engine:     eng,
		Gate:       gate,
		Tasks:      tasks,
		Backtester: backtester,
		Strategies: strategies,
		Bars:       barStore,
		Feed:       feed,
		Calc:       calc,
		Log:        logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("papertrade-server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
