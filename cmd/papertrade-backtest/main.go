package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/cost"
	"papertrade/internal/domain"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
	"papertrade/internal/strategy/builtins"
	"papertrade/internal/util"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "config file path (optional)")
		strategyArg = flag.String("strategy", "sma-cross-5-20", "strategy name")
		symbolsArg  = flag.String("symbols", "", "comma-separated symbols (required)")
		venueArg    = flag.String("venue", "SSE", "venue: SSE or SZSE")
		startArg    = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endArg      = flag.String("end", "", "end date YYYY-MM-DD (required)")
		capital     = flag.Float64("capital", 100000, "initial capital")
		withCurve   = flag.Bool("curve", false, "include the equity curve in output")
	)
	flag.Parse()

	if *symbolsArg == "" || *startArg == "" || *endArg == "" {
		flag.Usage()
		os.Exit(2)
	}

	start, err := time.Parse("2006-01-02", *startArg)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endArg)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}
	venue := domain.Venue(strings.ToUpper(*venueArg))
	if venue != domain.VenueSSE && venue != domain.VenueSZSE {
		log.Fatalf("unknown venue %q", *venueArg)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	registry := strategy.NewRegistry()
	smaCross, err := builtins.NewSMACross(5, 20)
	if err != nil {
		log.Fatalf("building sma-cross: %v", err)
	}
	registry.Register(smaCross)

	bt := strategy.NewBacktester(
		store.NewParquetStore(cfg.Storage.DataDir),
		registry,
		cost.NewCalculator(cfg.Cost),
	)

	symbols := strings.Split(*symbolsArg, ",")
	result, err := bt.Run(context.Background(), *strategyArg, venue, symbols, start, end, *capital)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
	if !*withCurve {
		result.EquityCurve = nil
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	fmt.Println(string(out))
}
