package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"hedgegrid/api"
	"hedgegrid/config"
	"hedgegrid/logger"
	"hedgegrid/store"
	"hedgegrid/trader"
)

func main() {
	// Load .env if present (local/dev runs). In containers the runtime
	// injects variables and this is harmless.
	_ = godotenv.Load()

	logger.Init(nil)

	logger.Info("╔══════════════════════════════════════════════╗")
	logger.Info("║   📊 hedgegrid: hedge & grid futures bot     ║")
	logger.Info("╚══════════════════════════════════════════════╝")

	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("❌ config load failed: %v", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		logger.Fatalf("❌ logger init failed: %v", err)
	}
	logger.Infof("📋 config loaded: %s, mode %s, poll %ds", cfg.Strategy.Symbol, cfg.Strategy.Mode, cfg.Strategy.PollIntervalSec)

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/trades.db"
	}
	st, err := store.New(dbPath)
	if err != nil {
		logger.Fatalf("❌ database init failed: %v", err)
	}

	gateway := trader.NewBinanceFutures(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet)
	ctx := context.Background()
	if err := gateway.Init(ctx); err != nil {
		logger.Fatalf("❌ exchange gateway init failed: %v", err)
	}

	engine := trader.NewEngine(&cfg.Strategy, gateway, st.Trade())
	if err := engine.Start(ctx); err != nil {
		logger.Fatalf("❌ engine start failed: %v", err)
	}

	apiServer := api.NewServer(engine, st.Trade(), cfg)
	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("❌ API server error: %v", err)
		}
	}()

	logger.Info("press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("📛 shutdown signal received, stopping gracefully...")
		engine.Stop()
	case <-engine.Done():
		// Engine halted on its own (emergency stop)
		logger.Error("🚨 engine halted, shutting down")
	}

	if sum, err := st.Trade().Summarize(); err == nil {
		logger.Infof("📈 session summary: %d trades, %d wins, net %s (fees %s)",
			sum.TotalTrades, sum.WinningTrades, sum.TotalNet, sum.TotalFees)
	}

	if err := apiServer.Shutdown(); err != nil {
		logger.Warnf("⚠️ API server shutdown: %v", err)
	}
	if err := st.Close(); err != nil {
		logger.Errorf("❌ database close failed: %v", err)
	}
	logger.Info("👋 bye")
}
