package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"amd-server/pkg/app"
	"amd-server/pkg/config"
	"amd-server/pkg/dialer"
	"amd-server/pkg/version"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// Usage: amd [file.wav[=phone] ...]
// With no arguments the server only serves metrics until it is signalled.
func main() {
	// Set up logger with basic configuration (will be updated after config is loaded)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stderr)

	if err := run(os.Args[1:]); err != nil {
		logger.WithError(err).Fatal("AMD server failed")
	}
}

func run(args []string) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ApplyLogging(logger); err != nil {
		return fmt.Errorf("failed to apply logging configuration: %w", err)
	}
	logStartupConfig(cfg)

	application, err := app.New(logger, cfg)
	if err != nil {
		return err
	}
	application.Start()

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	runErr := process(rootCtx, application, args)

	if len(args) == 0 && runErr == nil {
		logger.Info("No audio files given, serving metrics until shutdown")
		<-rootCtx.Done()
	}

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := application.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}
	return runErr
}

// process runs every file through the configured campaign and prints one
// JSON result per line to stdout
func process(ctx context.Context, application *app.Application, args []string) error {
	if len(args) == 0 {
		return nil
	}

	campaignID, err := application.EnsureCampaign(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare campaign: %w", err)
	}

	jobs := make([]dialer.Job, 0, len(args))
	for i, arg := range args {
		path, phone := parseArg(arg, i)
		audio, err := os.ReadFile(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Skipping unreadable audio file")
			continue
		}
		jobs = append(jobs, dialer.Job{
			CampaignID: campaignID,
			Phone:      phone,
			Audio:      audio,
			Source:     filepath.Base(path),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, outcome := range application.Dialer.RunBatch(ctx, jobs) {
		if outcome.Err != nil {
			failed++
			logger.WithError(outcome.Err).WithField("source", outcome.Job.Source).Error("Call failed")
			continue
		}
		if err := enc.Encode(outcome.Result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	analytics, err := application.Campaign.Analytics(ctx, campaignID)
	if err == nil {
		logger.WithFields(logrus.Fields{
			"campaign_id":         campaignID,
			"total_calls":         analytics.TotalCalls,
			"amd_detections":      analytics.AMDDetections,
			"human_connections":   analytics.HumanConnections,
			"messages_left":       analytics.MessagesLeft,
			"cultural_engagement": analytics.CulturalEngagement,
		}).Info("Campaign analytics")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d calls failed", failed, len(jobs))
	}
	return nil
}

// parseArg splits "path=phone"; files without a phone get a synthetic one
func parseArg(arg string, index int) (string, string) {
	if path, phone, ok := strings.Cut(arg, "="); ok && phone != "" {
		return path, phone
	}
	return arg, fmt.Sprintf("file-%d", index+1)
}

func logStartupConfig(cfg *config.Config) {
	logger.WithFields(logrus.Fields{
		"version":         version.Version,
		"sensitivity":     cfg.AMD.SensitivityLevel,
		"max_detection":   cfg.AMD.MaxDetectionTime,
		"corrected":       cfg.AMD.CorrectedSensitivity,
		"deepgram":        cfg.STT.Deepgram.Enabled,
		"amqp":            cfg.Messaging.Enabled(),
		"storage":         cfg.Storage.Type,
		"dialer_workers":  cfg.Dialer.Workers,
		"metrics_enabled": cfg.HTTP.EnableMetrics,
		"campaign":        cfg.Campaign.Name,
		"timezone":        cfg.Campaign.TimeZone,
	}).Info("Starting AMD server")
}
