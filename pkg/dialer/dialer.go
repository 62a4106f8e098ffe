package dialer

import (
	"context"
	"fmt"
	"time"

	"amd-server/pkg/campaign"
	"amd-server/pkg/metrics"
	"amd-server/pkg/ratelimit"

	"github.com/sirupsen/logrus"
)

// CallProcessor runs detection and follow-up for one answered call
type CallProcessor interface {
	ProcessCampaignCall(ctx context.Context, campaignID string, audio []byte, phone string) (*campaign.CallResult, error)
}

// Job is one answered call waiting for analysis
type Job struct {
	CampaignID string
	Phone      string
	Audio      []byte
	// Source names where the audio came from, for logging
	Source string
}

// Outcome pairs a job with its result
type Outcome struct {
	Job      Job
	Result   *campaign.CallResult
	Err      error
	Duration time.Duration
}

// Config sizes the dialer. CallsPerSecond paces calls per campaign; zero disables pacing.
type Config struct {
	Workers        int
	CallTimeout    time.Duration
	CallsPerSecond float64
	Burst          int
}

// Dialer fans answered calls out over a worker pool
type Dialer struct {
	logger    *logrus.Entry
	pool      *WorkerPool
	pacer     *ratelimit.Limiter
	processor CallProcessor
	timeout   time.Duration
}

// New creates and starts a dialer. Zero workers means one per CPU.
func New(logger *logrus.Logger, processor CallProcessor, cfg Config) *Dialer {
	pool := NewWorkerPool(cfg.Workers, logger)
	pool.Start()

	return &Dialer{
		logger:    logger.WithField("component", "dialer"),
		pool:      pool,
		pacer:     ratelimit.NewLimiter(cfg.CallsPerSecond, cfg.Burst, logger),
		processor: processor,
		timeout:   cfg.CallTimeout,
	}
}

// Submit queues a job, waiting for the campaign's pacing first. The returned
// channel receives exactly one outcome.
func (d *Dialer) Submit(ctx context.Context, job Job) (<-chan Outcome, error) {
	if err := d.pacer.Wait(ctx, job.CampaignID); err != nil {
		metrics.RecordDialerJob("rejected")
		return nil, err
	}

	out := make(chan Outcome, 1)
	err := d.pool.Submit(ctx, func() {
		out <- d.run(ctx, job)
	})
	if err != nil {
		metrics.RecordDialerJob("rejected")
		return nil, err
	}
	return out, nil
}

// RunBatch processes every job concurrently and returns outcomes in job order
func (d *Dialer) RunBatch(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	pending := make([]<-chan Outcome, len(jobs))

	for i, job := range jobs {
		ch, err := d.Submit(ctx, job)
		if err != nil {
			outcomes[i] = Outcome{Job: job, Err: err}
			continue
		}
		pending[i] = ch
	}

	for i, ch := range pending {
		if ch != nil {
			outcomes[i] = <-ch
		}
	}
	return outcomes
}

func (d *Dialer) run(ctx context.Context, job Job) (outcome Outcome) {
	start := time.Now()
	outcome.Job = job

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("call processing panicked: %v", r)
		}
		outcome.Duration = time.Since(start)

		status := "success"
		if outcome.Err != nil {
			status = "error"
		}
		metrics.RecordDialerJob(status)
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger := d.logger.WithFields(logrus.Fields{
		"campaign_id": job.CampaignID,
		"source":      job.Source,
	})

	result, err := d.processor.ProcessCampaignCall(ctx, job.CampaignID, job.Audio, job.Phone)
	if err != nil {
		logger.WithError(err).Warn("Call processing failed")
		outcome.Err = err
		return outcome
	}

	logger.WithFields(logrus.Fields{
		"action":    result.Action,
		"delivered": result.MessageDelivered,
	}).Debug("Call processed")
	outcome.Result = result
	return outcome
}

// Stats returns worker pool statistics
func (d *Dialer) Stats() *PoolStats {
	return d.pool.GetStats()
}

// Stop waits for queued calls to finish
func (d *Dialer) Stop() {
	d.pacer.Stop()
	d.pool.Stop()
}
