package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	SystemMemoryUsage prometheus.Gauge
	SystemGoroutines  prometheus.Gauge
)

func registerRuntimeMetrics() {
	SystemMemoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "amd_system_memory_usage_bytes",
			Help: "Current heap allocation in bytes",
		},
	)

	SystemGoroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "amd_system_goroutines",
			Help: "Number of goroutines",
		},
	)

	registry.MustRegister(SystemMemoryUsage, SystemGoroutines)
}

// RuntimeCollector periodically samples Go runtime statistics
type RuntimeCollector struct {
	logger          *logrus.Entry
	collectInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
}

// NewRuntimeCollector creates a collector; call Start to begin sampling
func NewRuntimeCollector(logger *logrus.Logger, interval time.Duration) *RuntimeCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &RuntimeCollector{
		logger:          logger.WithField("component", "runtime_metrics"),
		collectInterval: interval,
		stopChan:        make(chan struct{}),
	}
}

// Start samples immediately and then on every interval until Stop
func (c *RuntimeCollector) Start() {
	c.collect()
	go func() {
		ticker := time.NewTicker(c.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopChan:
				return
			}
		}
	}()
	c.logger.WithField("interval", c.collectInterval).Debug("Runtime metrics collection started")
}

// Stop ends sampling
func (c *RuntimeCollector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *RuntimeCollector) collect() {
	if !active() {
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
