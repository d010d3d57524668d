package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-screener/config"
	"crypto-screener/internal/logger"
	"crypto-screener/internal/metrics"
	"crypto-screener/internal/model"
	"crypto-screener/internal/screener"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("screener", slog.LevelInfo)
	log.Println("[screener] starting...")

	cfg := config.Load()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	os.MkdirAll("data", 0o755)

	eng := screener.New(cfg, prom, health)
	eng.OnSignalChange(func(symbol string, from, to model.Signal, snap model.Snapshot) {
		slog.Info("signal change",
			slog.String("symbol", symbol),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Int("confidence", snap.Confidence),
			slog.String("status", snap.TradeResult.Status),
			slog.String("trace_id", logger.GenerateTraceID(symbol, snap.LastUpdated)))
	})

	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(ctx) }()

	mode := "standard"
	if cfg.LowBandwidth {
		mode = "low bandwidth"
	}
	log.Println("[screener] ╔════════════════════════════════════════════════════════════╗")
	log.Println("[screener] ║  Crypto Signal Screener                                    ║")
	log.Println("[screener] ║                                                            ║")
	log.Println("[screener] ║  [Catalog] → [Seed] → [Streams + Backfill] → [Signals]     ║")
	log.Printf("[screener] ║  Mode: %-51s ║\n", mode)
	log.Printf("[screener] ║  Metrics: %-48s ║\n", cfg.MetricsAddr)
	log.Println("[screener] ╚════════════════════════════════════════════════════════════╝")

	select {
	case <-sigCh:
		log.Println("[screener] shutdown signal received, cleaning up...")
		cancel()
		if err := <-errCh; err != nil {
			log.Printf("[screener] pipeline error: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Printf("[screener] pipeline failed: %v", err)
			cancel()
			shutdownAndExit(metricsSrv, 1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[screener] shutdown complete.")
}

func shutdownAndExit(srv *metrics.Server, code int) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Stop(shutdownCtx)
	os.Exit(code)
}
