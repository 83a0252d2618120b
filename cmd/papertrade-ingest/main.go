package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/domain"
	"papertrade/internal/marketdata"
	"papertrade/internal/store"
	"papertrade/internal/util"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "config file path (optional)")
		symbolsArg = flag.String("symbols", "", "comma-separated symbols (required)")
		venueArg   = flag.String("venue", "SSE", "venue: SSE or SZSE")
		startArg   = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endArg     = flag.String("end", "", "end date YYYY-MM-DD, defaults to today")
	)
	flag.Parse()

	if *symbolsArg == "" || *startArg == "" {
		flag.Usage()
		log.Fatal("symbols and start are required")
	}

	start, err := time.Parse("2006-01-02", *startArg)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end := time.Now()
	if *endArg != "" {
		end, err = time.Parse("2006-01-02", *endArg)
		if err != nil {
			log.Fatalf("invalid end date: %v", err)
		}
	}
	venue := domain.Venue(strings.ToUpper(*venueArg))
	if venue != domain.VenueSSE && venue != domain.VenueSZSE {
		log.Fatalf("unknown venue %q", *venueArg)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" {
		log.Fatal("alpaca api key required (config or APCA_API_KEY_ID)")
	}
	feed := marketdata.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.MarketData.RateLimitPerMin)

	ingestor := marketdata.NewIngestor(feed, store.NewParquetStore(cfg.Storage.DataDir), venue, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := ingestor.Ingest(ctx, strings.Split(*symbolsArg, ","), start, end)
	if err != nil {
		log.Fatalf("ingest failed after %d bars: %v", n, err)
	}
	fmt.Printf("ingested %d bars\n", n)
}
