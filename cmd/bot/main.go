package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/probelab/binancebot/internal/bot"
	"github.com/probelab/binancebot/internal/config"
	"github.com/probelab/binancebot/internal/database"
	"github.com/probelab/binancebot/internal/exchange"
	"github.com/probelab/binancebot/internal/ledger"
	"github.com/probelab/binancebot/internal/prediction"
	"github.com/probelab/binancebot/internal/scheduler"
	"github.com/probelab/binancebot/internal/secrets"
	"github.com/probelab/binancebot/internal/server"
	"github.com/probelab/binancebot/internal/thresholds"
	"github.com/probelab/binancebot/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		errLog := logger.New(logger.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.Pretty,
	})

	log.Info().Strs("assets", cfg.Assets).Bool("dry_run", cfg.DryRun).Msg("Starting trading bot")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := ledger.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate trades schema")
	}
	if err := thresholds.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate thresholds schema")
	}

	// Exchange client; trade-size constraints load once and stay immutable
	exchangeClient := exchange.NewClient(cfg.BinanceBaseURL, cfg.HTTPTimeout, log)

	symbols := make([]string, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		symbols = append(symbols, asset+cfg.QuoteAsset)
	}
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), cfg.HTTPTimeout*time.Duration(len(symbols)))
	defer cancelBoot()
	if err := exchangeClient.LoadExchangeInfo(bootCtx, symbols); err != nil {
		log.Fatal().Err(err).Msg("Failed to load exchange trade-size constraints")
	}

	// Caches and clients
	secretCache := secrets.NewCache(
		secrets.NewClient(cfg.SecretServiceURL, cfg.HTTPTimeout, log),
		cfg.APIKeySecret,
		cfg.PrivateKeySecret,
		cfg.SecretTTL,
		log,
	)
	thresholdCache := thresholds.NewCache(
		thresholds.NewRepository(db.Conn(), log),
		len(cfg.Assets),
		cfg.ThresholdTTL,
		log,
	)
	estimator := prediction.NewEngine(
		prediction.NewClient(cfg.OracleURL, cfg.HTTPTimeout, log),
		cfg.FeatureIndexes,
		cfg.ModelPrefix,
		log,
	)
	ledgerRepo := ledger.NewRepository(db.Conn(), log)

	// Core cycle
	state := bot.NewState(cfg.Assets, config.WindowCapacity)

	synchronizer := bot.NewSynchronizer(bot.SynchronizerConfig{
		Assets:     cfg.Assets,
		QuoteAsset: cfg.QuoteAsset,
		Market:     exchangeClient,
		Creds:      secretCache,
		Thresholds: thresholdCache,
		Positions:  ledgerRepo,
		Estimator:  estimator,
		State:      state,
		Log:        log,
	})

	trader := bot.NewTrader(bot.TraderConfig{
		Orders:     exchangeClient,
		Ledger:     ledgerRepo,
		Creds:      secretCache,
		QuoteAsset: cfg.QuoteAsset,
		DryRun:     cfg.DryRun,
		Log:        log,
	})

	engine := bot.NewEngine(bot.EngineConfig{
		Assets:           cfg.Assets,
		QuoteAsset:       cfg.QuoteAsset,
		TakeProfit:       cfg.TakeProfit,
		StopLoss:         cfg.StopLoss,
		MaxTradeDuration: cfg.MaxTradeDuration,
		Thresholds:       thresholdCache,
		Trader:           trader,
		State:            state,
		RefreshBalances:  synchronizer.RefreshBalances,
		Log:              log,
	})

	board := bot.NewStatusBoard()
	cycle := bot.NewCycleJob(bot.CycleJobConfig{
		Synchronizer: synchronizer,
		Engine:       engine,
		State:        state,
		Thresholds:   thresholdCache,
		Board:        board,
		Timeout:      50 * time.Second, // must finish before the next minute tick
		Log:          log,
	})

	// Scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.CronSchedule, cycle); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cycle job")
	}
	sched.Start()
	defer sched.Stop()

	// Status API
	srv := server.New(server.Config{
		Port:   cfg.Port,
		Log:    log,
		Board:  board,
		Ledger: ledgerRepo,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}
