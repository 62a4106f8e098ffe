package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"amd-server/pkg/amd"
	"amd-server/pkg/campaign"
	"amd-server/pkg/circuitbreaker"
	"amd-server/pkg/config"
	"amd-server/pkg/dialer"
	"amd-server/pkg/messaging"
	"amd-server/pkg/metrics"
	"amd-server/pkg/models"
	"amd-server/pkg/storage"
	"amd-server/pkg/stt"

	"github.com/sirupsen/logrus"
)

// Application holds every wired component of the server
type Application struct {
	logger *logrus.Logger
	config *config.Config

	Breakers *circuitbreaker.Manager
	Detector *amd.Detector
	Channel  messaging.DeliveryChannel
	Sender   *messaging.RetryingChannel
	Store    storage.CampaignStore
	Campaign *campaign.Manager
	Dialer   *dialer.Dialer

	amqp       *messaging.AMQPChannel
	httpServer *http.Server
	runtime    *metrics.RuntimeCollector

	closeOnce sync.Once
}

// New wires the application from configuration. Nothing listens until Start.
func New(logger *logrus.Logger, cfg *config.Config) (*Application, error) {
	a := &Application{
		logger:   logger,
		config:   cfg,
		Breakers: circuitbreaker.NewManager(logger, circuitbreaker.DefaultConfig()),
	}

	detector, err := a.buildDetector()
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	a.Detector = detector

	a.Channel = a.buildChannel()
	a.Sender = messaging.NewRetryingChannel(logger, a.Channel,
		a.Breakers.GetCircuitBreaker("delivery_"+a.Channel.Name(), circuitbreaker.DeliveryConfig()),
		messaging.RetryConfig{
			MaxAttempts:       cfg.Delivery.MaxAttempts,
			AttemptTimeout:    cfg.Delivery.AttemptTimeout,
			InitialBackoff:    cfg.Delivery.InitialBackoff,
			BackoffMultiplier: cfg.Delivery.BackoffMultiplier,
			MaxBackoff:        cfg.Delivery.MaxBackoff,
			DeadLetter:        cfg.Delivery.DeadLetter,
		})

	store, err := a.buildStore()
	if err != nil {
		a.disconnect()
		return nil, fmt.Errorf("failed to open campaign store: %w", err)
	}
	a.Store = store

	a.Campaign = campaign.NewManager(logger, a.Detector, a.Sender, a.Store)
	a.Dialer = dialer.New(logger, a.Campaign, dialer.Config{
		Workers:        cfg.Dialer.Workers,
		CallTimeout:    cfg.Dialer.CallTimeout,
		CallsPerSecond: cfg.Dialer.CallsPerSecond,
		Burst:          cfg.Dialer.Burst,
	})

	return a, nil
}

func (a *Application) buildDetector() (*amd.Detector, error) {
	var primary stt.Transcriber
	if a.config.STT.Deepgram.Enabled {
		deepgram := stt.NewDeepgramProvider(a.logger, stt.DeepgramConfig{
			APIKey:   a.config.STT.Deepgram.APIKey,
			APIURL:   a.config.STT.Deepgram.APIURL,
			Model:    a.config.STT.Deepgram.Model,
			Language: a.config.STT.Deepgram.Language,
		})
		if err := deepgram.Initialize(); err != nil {
			a.logger.WithError(err).Warn("Deepgram unavailable, greetings will use placeholder transcripts")
		} else {
			manager := stt.NewProviderManager(a.logger, deepgram.Name())
			manager.RegisterProvider(deepgram)
			primary = manager
		}
	}

	var breaker *circuitbreaker.CircuitBreaker
	if primary != nil {
		breaker = a.Breakers.GetCircuitBreaker("stt", circuitbreaker.STTConfig())
	}
	transcriber := stt.NewFallbackTranscriber(a.logger, primary, breaker, a.config.STT.Timeout)

	return amd.NewDetector(a.logger, a.config.DetectorConfiguration(), amd.WithTranscriber(transcriber))
}

// buildChannel connects to AMQP when configured, otherwise keeps messages in memory
func (a *Application) buildChannel() messaging.DeliveryChannel {
	if !a.config.Messaging.Enabled() {
		return messaging.NewMemoryChannel()
	}

	ch := messaging.NewAMQPChannel(a.logger, messaging.AMQPConfig{
		URL:            a.config.Messaging.AMQPUrl,
		QueueName:      a.config.Messaging.AMQPQueueName,
		ExchangeName:   a.config.Messaging.AMQPExchangeName,
		RoutingKey:     a.config.Messaging.AMQPRoutingKey,
		ConnectTimeout: a.config.Messaging.ConnectTimeout,
	})
	if err := ch.Connect(); err != nil {
		a.logger.WithError(err).Warn("Failed to connect to AMQP, delivering messages to memory")
		return messaging.NewMemoryChannel()
	}
	a.amqp = ch
	return ch
}

func (a *Application) buildStore() (storage.CampaignStore, error) {
	switch {
	case a.config.Storage.Type == "memory":
		return storage.NewMemoryStore(), nil
	case a.config.Storage.InMemory:
		return storage.NewInMemoryBadgerStore(a.logger)
	default:
		return storage.NewBadgerStore(a.logger, a.config.Storage.Path)
	}
}

// EnsureCampaign returns the ID of the campaign named in configuration,
// creating and activating it on first use
func (a *Application) EnsureCampaign(ctx context.Context) (string, error) {
	cfg := a.config.Campaign

	existing, err := a.Campaign.ListCampaigns(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range existing {
		if c.Name == cfg.Name {
			return c.ID, nil
		}
	}

	id, err := a.Campaign.CreateCampaign(ctx, campaign.Spec{
		Name:   cfg.Name,
		Status: models.CampaignActive,
		CulturalProfile: models.CulturalProfile{
			PrimaryLanguage: cfg.PrimaryLanguage,
			Region:          cfg.Region,
		},
		MessageConfiguration: models.MessageConfiguration{
			Human:   models.LocalizedMessage{Malayalam: cfg.HumanMessageML, English: cfg.HumanMessageEN},
			Machine: models.LocalizedMessage{Malayalam: cfg.MachineMessageML, English: cfg.MachineMessageEN},
		},
		CallbackSettings: models.CallbackSettings{
			Enabled:            true,
			MaxAttempts:        cfg.MaxAttempts,
			RetryInterval:      cfg.RetryInterval,
			BusinessHoursStart: cfg.BusinessHoursStart,
			BusinessHoursEnd:   cfg.BusinessHoursEnd,
			TimeZone:           cfg.TimeZone,
		},
		Escalation: models.Escalation{
			TransferOnHuman: cfg.TransferNumber != "",
			TransferNumber:  cfg.TransferNumber,
		},
	})
	if err != nil {
		return "", err
	}
	a.logger.WithFields(logrus.Fields{
		"campaign_id": id,
		"name":        cfg.Name,
	}).Info("Created campaign")
	return id, nil
}

// Start begins metrics collection and serves the metrics endpoint
func (a *Application) Start() {
	metrics.SetMetricsPath(a.config.HTTP.MetricsPath)
	metrics.StartMetrics(a.logger, a.config.HTTP.EnableMetrics)
	if !metrics.IsMetricsEnabled() {
		return
	}

	a.runtime = metrics.NewRuntimeCollector(a.logger, 10*time.Second)
	a.runtime.Start()

	if !a.config.HTTP.Enabled {
		return
	}

	mux := http.NewServeMux()
	metrics.RegisterHandler(mux)
	a.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(a.config.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  a.config.HTTP.ReadTimeout,
		WriteTimeout: a.config.HTTP.WriteTimeout,
	}

	go func() {
		a.logger.WithFields(logrus.Fields{
			"addr": a.httpServer.Addr,
			"path": a.config.HTTP.MetricsPath,
		}).Info("Metrics server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("Metrics server failed")
		}
	}()
}

// Close drains the dialer and releases every resource
func (a *Application) Close(ctx context.Context) error {
	var firstErr error
	a.closeOnce.Do(func() {
		if a.httpServer != nil {
			if err := a.httpServer.Shutdown(ctx); err != nil {
				a.logger.WithError(err).Warn("Failed to shut down metrics server")
			}
		}

		a.Dialer.Stop()
		a.Breakers.LogStatistics()

		if a.runtime != nil {
			a.runtime.Stop()
		}
		a.disconnect()

		if err := a.Store.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close campaign store: %w", err)
		}
	})
	return firstErr
}

func (a *Application) disconnect() {
	if a.amqp != nil {
		a.amqp.Disconnect()
	}
}
