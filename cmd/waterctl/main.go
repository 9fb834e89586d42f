package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/udare/waterctl/internal/config"
	"github.com/udare/waterctl/internal/control"
	"github.com/udare/waterctl/internal/engine"
	"github.com/udare/waterctl/internal/hal"
	"github.com/udare/waterctl/internal/logger"
	"github.com/udare/waterctl/internal/metrics"
	"github.com/udare/waterctl/internal/models"
	"github.com/udare/waterctl/internal/predictor"
	"github.com/udare/waterctl/internal/sensor"
	"github.com/udare/waterctl/internal/telegram"
	"github.com/udare/waterctl/internal/telemetry"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Open the hardware board
	var board hal.Board
	if cfg.Hardware.Simulated {
		logger.Warn("Running with simulated hardware, no pins will be driven")
		board = hal.NewMock()
	} else {
		board, err = hal.OpenRPi(hal.RPiConfig{
			PumpPin:          cfg.Hardware.PumpPin,
			LightChannel:     cfg.Hardware.LightChannel,
			SoilChannel:      cfg.Hardware.SoilChannel,
			ReservoirChannel: cfg.Hardware.ReservoirChannel,
			ClimateTempPath:  cfg.Hardware.ClimateTempPath,
			ClimateHumPath:   cfg.Hardware.ClimateHumPath,
		})
		if err != nil {
			logger.Fatal("Failed to open hardware board: %v", err)
		}
	}
	defer func() {
		if err := board.Close(); err != nil {
			logger.Error("Failed to close hardware board: %v", err)
		}
	}()

	// Initialize Telegram client
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

	// Initialize MQTT telemetry
	var publisher *telemetry.Publisher
	if cfg.Telemetry.Enabled {
		publisher, err = telemetry.NewPublisher(telemetry.PublisherConfig{
			Broker:   cfg.Telemetry.Broker,
			ClientID: cfg.Telemetry.ClientID,
			Username: cfg.Telemetry.Username,
			Password: cfg.Telemetry.Password,
			DeviceID: cfg.Telemetry.DeviceID,
		})
		if err != nil {
			// The loop is more important than its mirror; run without telemetry.
			logger.Error("Failed to initialize MQTT telemetry: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Initialize the decision engine
	eng := engine.New(board, cfg.Calibration(),
		engine.WithPumpListener(func(on bool, snap models.Snapshot) {
			if publisher != nil {
				publisher.PublishPump(on, snap)
			}
		}),
		engine.WithReservoirListener(func(present bool) {
			if telegramClient == nil {
				return
			}
			var err error
			if present {
				err = telegramClient.SendReservoirRestored()
			} else {
				err = telegramClient.SendReservoirEmpty()
			}
			if err != nil {
				logger.Warn("Failed to send reservoir notification: %v", err)
			}
		}),
	)

	// Initialize the prediction client
	predClient := predictor.NewClient(cfg.Predictor.BaseURL, cfg.Predictor.Timeout, cfg.Predictor.LightOffset)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	// Start the control surface
	srv := control.NewServer(cfg.Control.ListenAddr, eng)
	srv.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Control surface shutdown failed: %v", err)
		}
	}()

	// Boot-time predictor probe, informational only
	if err := predClient.Health(ctx); err != nil {
		logger.Warn("Prediction service health check failed: %v", err)
	} else {
		logger.Info("Prediction service healthy at %s", cfg.Predictor.BaseURL)
	}

	logger.Info("Starting control loop (sample: %v, predict: %v, light threshold: %d)",
		cfg.Sensors.SampleInterval,
		cfg.Predictor.PredictInterval,
		cfg.Sensors.LightThreshold,
	)

	senseTicker := time.NewTicker(cfg.Sensors.SampleInterval)
	defer senseTicker.Stop()
	predictTicker := time.NewTicker(cfg.Predictor.PredictInterval)
	defer predictTicker.Stop()

	consecutiveFailures := 0

	handlePredictResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Prediction cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendPredictorError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendPredictorRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	// Run an initial sense cycle immediately so the engine sees real state
	// before the first ticker fires.
	runSenseCycle(board, eng, publisher)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-senseTicker.C:
			runSenseCycle(board, eng, publisher)

		case <-predictTicker.C:
			if eng.ManualMode() {
				// A human is driving; don't waste remote calls.
				logger.Debug("Skipping prediction cycle in manual mode")
				continue
			}
			handlePredictResult(runPredictCycle(ctx, predClient, eng))
		}
	}
}

// runSenseCycle refreshes the snapshot, lets the engine recompute and apply
// the pump command, and mirrors the state to telemetry.
func runSenseCycle(board hal.Board, eng *engine.Engine, publisher *telemetry.Publisher) {
	snap := sensor.Read(board, eng.Calibration())
	metrics.SenseTicks.Inc()
	eng.UpdateSnapshot(snap)

	if publisher != nil {
		publisher.PublishSnapshot(snap)
	}
}

// runPredictCycle consults the remote scoring service with the latest
// snapshot and records the outcome. A failure degrades the engine to its
// threshold fallback; it is never fatal.
func runPredictCycle(ctx context.Context, client *predictor.Client, eng *engine.Engine) error {
	snap := eng.Snapshot()

	start := time.Now()
	metrics.PredictionAttempts.Inc()
	shouldWater, msg, err := client.Predict(ctx, snap)
	metrics.PredictionLatency.Observe(time.Since(start).Seconds())

	eng.RecordPrediction(shouldWater, msg, err)

	if err != nil {
		metrics.PredictionFailures.WithLabelValues(failureCause(err)).Inc()
		return err
	}

	logger.Debug("Prediction received: should_water=%v", shouldWater)
	return nil
}

func failureCause(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, predictor.ErrLinkDown):
		return "link_down"
	case errors.Is(err, predictor.ErrNoTemperature):
		return "no_temperature"
	case errors.Is(err, predictor.ErrStatus):
		return "bad_status"
	case errors.Is(err, predictor.ErrBadResponse):
		return "bad_response"
	default:
		return "transport"
	}
}
