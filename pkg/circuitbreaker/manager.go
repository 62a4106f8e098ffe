package circuitbreaker

import (
	"sort"
	"sync"

	"amd-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// Manager owns the named breakers of the process and publishes their state
type Manager struct {
	logger        *logrus.Entry
	breakers      map[string]*CircuitBreaker
	mutex         sync.RWMutex
	defaultConfig *Config
}

// NewManager creates a new circuit breaker manager
func NewManager(logger *logrus.Logger, defaultConfig *Config) *Manager {
	if defaultConfig == nil {
		defaultConfig = DefaultConfig()
	}

	return &Manager{
		logger:        logger.WithField("component", "circuit_breaker_manager"),
		breakers:      make(map[string]*CircuitBreaker),
		defaultConfig: defaultConfig,
	}
}

// GetCircuitBreaker gets or creates a circuit breaker
func (m *Manager) GetCircuitBreaker(name string, config *Config) *CircuitBreaker {
	m.mutex.RLock()
	if breaker, exists := m.breakers[name]; exists {
		m.mutex.RUnlock()
		return breaker
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	if config == nil {
		config = m.defaultConfig
	}

	breaker := NewCircuitBreaker(name, config, m.logger.Logger)
	breaker.SetStateChangeCallback(m.onStateChange)
	m.breakers[name] = breaker
	metrics.SetCircuitBreakerState(name, int(StateClosed))

	m.logger.WithFields(logrus.Fields{
		"circuit_name":      name,
		"failure_threshold": config.FailureThreshold,
		"timeout":           config.Timeout,
	}).Info("Created new circuit breaker")

	return breaker
}

// GetAllStatistics returns statistics for all circuit breakers
func (m *Manager) GetAllStatistics() map[string]Statistics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := make(map[string]Statistics, len(m.breakers))
	for name, breaker := range m.breakers {
		stats[name] = breaker.GetStatistics()
	}
	return stats
}

// GetBreakerNames returns all circuit breaker names, sorted
func (m *Manager) GetBreakerNames() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogStatistics writes one line per breaker that has seen traffic
func (m *Manager) LogStatistics() {
	for name, stat := range m.GetAllStatistics() {
		if stat.TotalRequests == 0 && stat.RejectedRequests == 0 {
			continue
		}
		m.logger.WithFields(logrus.Fields{
			"circuit_name":        name,
			"total_requests":      stat.TotalRequests,
			"successful_requests": stat.SuccessfulRequests,
			"failed_requests":     stat.FailedRequests,
			"rejected_requests":   stat.RejectedRequests,
			"state_transitions":   stat.StateTransitions,
		}).Info("Circuit breaker statistics")
	}
}

func (m *Manager) onStateChange(name string, from State, to State) {
	metrics.SetCircuitBreakerState(name, int(to))
	m.logger.WithFields(logrus.Fields{
		"circuit_name": name,
		"from_state":   from.String(),
		"to_state":     to.String(),
	}).Warn("Circuit breaker state changed")
}
