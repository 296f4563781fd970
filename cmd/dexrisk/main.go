package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/dexrisk/internal/config"
	"github.com/rewired-gh/dexrisk/internal/dex"
	"github.com/rewired-gh/dexrisk/internal/logger"
	"github.com/rewired-gh/dexrisk/internal/models"
	"github.com/rewired-gh/dexrisk/internal/storage"
	"github.com/rewired-gh/dexrisk/internal/strategy"
	"github.com/rewired-gh/dexrisk/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single evaluation cycle and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxDecisions,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	if err := store.RotateDecisions(); err != nil {
		logger.Warn("Failed to rotate decisions: %v", err)
	}

	dexClient := dex.NewClient(
		cfg.Exchange.APIURL,
		cfg.Exchange.OrderURL,
		cfg.Account,
		cfg.Exchange.Timeout,
		dex.ClientConfig{
			MaxRetries:     cfg.Exchange.MaxRetries,
			RetryDelayBase: cfg.Exchange.RetryDelayBase,
			RateLimit:      cfg.Exchange.RateLimit,
		},
	)

	var submitter strategy.OrderSubmitter = dexClient
	if cfg.Strategy.DryRun {
		submitter = strategy.DryRunSubmitter{}
		logger.Warn("Dry run enabled: orders will be logged, not submitted")
	}
	engine := strategy.New(dexClient, strategy.NewExecutor(submitter), cfg.EngineConfig())

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := engine.Prepare(ctx); err != nil {
		if strategy.IsConfigurationError(err) {
			logger.Fatal("Invalid market configuration: %v", err)
		}
		// resolved lazily on the first cycle
		logger.Warn("Failed to resolve market at startup: %v", err)
	}

	logger.Info("Executing %s risk strategy trades on account %s", cfg.Strategy.Symbol, cfg.Account)

	if *once {
		outcome, err := runCycle(ctx, engine, store, telegramClient)
		if err != nil || outcome.Kind == models.OutcomeError {
			store.Close() //nolint:errcheck
			os.Exit(1)
		}
		return
	}

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx, store)
	}

	logger.Info("Starting strategy service (interval: %v, risk_factor: %.4f, max_volatility: %.4f)",
		cfg.Scheduler.Interval,
		cfg.Strategy.RiskFactor,
		cfg.Strategy.MaximumVolatility,
	)

	ticker := time.NewTicker(cfg.Scheduler.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			if strategy.IsConfigurationError(err) {
				logger.Fatal("Invalid market configuration: %v", err)
			}
			consecutiveFailures++
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial strategy cycle")
	_, err = runCycle(ctx, engine, store, telegramClient)
	handleCycleResult(err)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled strategy cycle")
			_, err := runCycle(ctx, engine, store, telegramClient)
			handleCycleResult(err)
			if err := store.RotateDecisions(); err != nil {
				logger.Warn("Failed to rotate decisions: %v", err)
			}
		}
	}
}

// runCycle evaluates the strategy once, then logs, journals and notifies the outcome.
// A panic inside the engine is reported as a cycle error so the loop keeps running.
func runCycle(
	ctx context.Context,
	engine *strategy.Engine,
	store *storage.Storage,
	telegramClient *telegram.Client,
) (outcome models.Outcome, err error) {
	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy cycle panicked: %v", r)
			logger.Error("%v", err)
		}
	}()

	outcome, err = engine.Evaluate(ctx)
	if err != nil {
		logger.Error("Strategy cycle failed: %v", err)
		return outcome, err
	}

	switch outcome.Kind {
	case models.OutcomeExecuted:
		logger.Info("Order placed: %s", outcome.Reason)
	case models.OutcomeError:
		logger.Error("Strategy error on %s: %s", outcome.Symbol, outcome.Reason)
	default:
		logger.Info("No action on %s: %s", outcome.Symbol, outcome.Reason)
	}
	if outcome.Stats != nil && outcome.Stats.Trend != "" {
		logger.Debug("Stats: average %s, stddev %s, volatility %s, trend %s, volume %s",
			outcome.Stats.Average, outcome.Stats.StdDev, outcome.Stats.Volatility,
			outcome.Stats.Trend, outcome.Stats.TotalVolume)
	}

	if err := store.AddDecision(outcome); err != nil {
		logger.Warn("Failed to journal decision: %v", err)
	}

	if telegramClient != nil && telegram.Notable(outcome) {
		if err := telegramClient.SendOutcome(outcome); err != nil {
			logger.Warn("Failed to send outcome to Telegram: %v", err)
		}
	}

	logger.Debug("Strategy cycle completed in %v", time.Since(startTime))
	return outcome, nil
}
