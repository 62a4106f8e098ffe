package messaging

import (
	"context"
	"sync"
)

// MemoryChannel keeps delivered messages in memory. It backs dry runs and
// tests, and can be told to fail a number of upcoming deliveries.
type MemoryChannel struct {
	mutex     sync.RWMutex
	delivered []Message
	failures  int
	failErr   error
	attempts  int
}

// NewMemoryChannel creates an empty in-memory channel
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

// Name implements DeliveryChannel
func (m *MemoryChannel) Name() string {
	return "memory"
}

// FailNext makes the next n deliveries return err
func (m *MemoryChannel) FailNext(n int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures = n
	m.failErr = err
}

// Deliver implements DeliveryChannel
func (m *MemoryChannel) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.attempts++
	if m.failures > 0 {
		m.failures--
		return m.failErr
	}

	msgCopy := msg
	if msg.Metadata != nil {
		msgCopy.Metadata = make(map[string]string, len(msg.Metadata))
		for k, v := range msg.Metadata {
			msgCopy.Metadata[k] = v
		}
	}
	m.delivered = append(m.delivered, msgCopy)
	return nil
}

// Delivered returns a copy of every message accepted so far
func (m *MemoryChannel) Delivered() []Message {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]Message(nil), m.delivered...)
}

// Attempts counts Deliver calls, successful or not
func (m *MemoryChannel) Attempts() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.attempts
}

// Clear forgets delivered messages and pending failures
func (m *MemoryChannel) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.delivered = nil
	m.failures = 0
	m.failErr = nil
	m.attempts = 0
}
