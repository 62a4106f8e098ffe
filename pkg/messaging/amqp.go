package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"amd-server/pkg/metrics"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const (
	defaultConnectTimeout = 5 * time.Second
	channelSetupTimeout   = 3 * time.Second
	// Messages nobody consumes within 12 hours are stale voicemail drops
	messageExpiration   = "43200000"
	maxReconnectAttempt = 10
	maxReconnectBackoff = 30 * time.Second
)

// AMQPConfig holds AMQP delivery channel configuration
type AMQPConfig struct {
	URL            string
	QueueName      string
	ExchangeName   string
	RoutingKey     string
	Durable        bool
	AutoDelete     bool
	ConnectTimeout time.Duration
}

// AMQPChannel publishes outbound messages to a queue consumed by the media gateway
type AMQPChannel struct {
	logger    *logrus.Entry
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPChannel creates a new AMQP delivery channel. Queues are durable.
func NewAMQPChannel(logger *logrus.Logger, config AMQPConfig) *AMQPChannel {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}
	config.Durable = true
	config.AutoDelete = false

	return &AMQPChannel{
		logger:   logger.WithField("component", "amqp_delivery"),
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Name implements DeliveryChannel
func (c *AMQPChannel) Name() string {
	return "amqp"
}

// Connect establishes a connection to the AMQP server and declares the queue
func (c *AMQPChannel) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP URL or queue name not set, AMQP delivery will be disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}

	channel, err := withTimeout(channelSetupTimeout, conn.Channel)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	_, err = withTimeout(channelSetupTimeout, func() (amqp.Queue, error) {
		return channel.QueueDeclare(
			c.config.QueueName,
			c.config.Durable,
			c.config.AutoDelete,
			false, // exclusive
			false, // no-wait
			nil,
		)
	})
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.connected = true
	c.stopChan = make(chan struct{})
	metrics.SetAMQPConnectionStatus(true)

	c.logger.WithFields(logrus.Fields{
		"url":   c.config.URL,
		"queue": c.config.QueueName,
	}).Info("Connected to AMQP server")

	go c.monitorConnection(conn)
	return nil
}

func (c *AMQPChannel) dial() (*amqp.Connection, error) {
	type dialResult struct {
		conn *amqp.Connection
		err  error
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	defer cancel()

	resultChan := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case resultChan <- dialResult{conn, err}:
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		}
	}()

	select {
	case result := <-resultChan:
		if result.err != nil {
			return nil, fmt.Errorf("failed to connect to AMQP server: %w", result.err)
		}
		return result.conn, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("connection to AMQP server timed out after %s", c.config.ConnectTimeout)
	}
}

// withTimeout runs fn and gives up waiting after d
func withTimeout[T any](d time.Duration, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	resultChan := make(chan result, 1)
	go func() {
		v, err := fn()
		resultChan <- result{v, err}
	}()

	select {
	case r := <-resultChan:
		return r.value, r.err
	case <-time.After(d):
		var zero T
		return zero, fmt.Errorf("timed out after %s", d)
	}
}

// Disconnect closes the AMQP connection
func (c *AMQPChannel) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	c.connected = false
	metrics.SetAMQPConnectionStatus(false)
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (c *AMQPChannel) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// Deliver publishes msg as persistent JSON. The broker round trip is bounded by ctx.
func (c *AMQPChannel) Deliver(ctx context.Context, msg Message) error {
	err := c.publish(ctx, c.config.RoutingKey, msg, nil)
	if err != nil {
		metrics.RecordAMQPPublish(c.config.QueueName, "error")
		return err
	}
	metrics.RecordAMQPPublish(c.config.QueueName, "success")
	c.logger.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"campaign_id": msg.CampaignID,
	}).Debug("Published message to AMQP")
	return nil
}

// PublishToDeadLetterQueue parks a message that exhausted its delivery attempts
func (c *AMQPChannel) PublishToDeadLetterQueue(ctx context.Context, msg Message, reason error) error {
	deadLetterQueue := c.config.QueueName + ".dead_letter"

	c.connMutex.RLock()
	channel := c.channel
	connected := c.connected
	c.connMutex.RUnlock()
	if !connected || channel == nil {
		return fmt.Errorf("not connected to AMQP server")
	}

	if _, err := channel.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	headers := amqp.Table{
		"x-dead-letter-reason": "max-retries-exceeded",
		"x-campaign-id":        msg.CampaignID,
	}
	if reason != nil {
		headers["x-last-error"] = reason.Error()
	}
	if err := c.publish(ctx, deadLetterQueue, msg, headers); err != nil {
		metrics.RecordAMQPPublish(deadLetterQueue, "error")
		return fmt.Errorf("failed to publish to dead letter queue: %w", err)
	}

	metrics.RecordAMQPPublish(deadLetterQueue, "success")
	c.logger.WithFields(logrus.Fields{
		"message_id":        msg.ID,
		"dead_letter_queue": deadLetterQueue,
	}).Info("Message published to dead letter queue")
	return nil
}

func (c *AMQPChannel) publish(ctx context.Context, routingKey string, msg Message, headers amqp.Table) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"message_id": msg.ID,
				"recover":    r,
			}).Error("Recovered from panic in AMQP publish")
			err = fmt.Errorf("AMQP publish panicked: %v", r)
		}
	}()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to AMQP server")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}

	publishChan := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			publishChan <- fmt.Errorf("lost AMQP connection before publishing")
			return
		}
		publishChan <- c.channel.Publish(
			c.config.ExchangeName,
			routingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				MessageId:    msg.ID,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Expiration:   messageExpiration,
				Headers:      headers,
			},
		)
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			return fmt.Errorf("failed to publish to AMQP: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publishing to AMQP timed out: %w", ctx.Err())
	}
}

// monitorConnection reconnects with backoff when the broker drops the connection
func (c *AMQPChannel) monitorConnection(conn *amqp.Connection) {
	closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.connMutex.RLock()
	stopChan := c.stopChan
	c.connMutex.RUnlock()

	select {
	case <-stopChan:
		return
	case closeErr, ok := <-closeChan:
		if !ok {
			return
		}
		c.connMutex.Lock()
		c.connected = false
		c.connMutex.Unlock()
		metrics.SetAMQPConnectionStatus(false)

		c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")
	}

	for attempt := 1; attempt <= maxReconnectAttempt; attempt++ {
		err := c.Connect()
		if err == nil {
			c.logger.WithField("attempt", attempt).Info("Reconnected to AMQP server")
			return
		}
		c.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")

		backoff := time.Duration(1<<uint(attempt-1)) * time.Second
		if backoff > maxReconnectBackoff {
			backoff = maxReconnectBackoff
		}
		select {
		case <-time.After(backoff):
		case <-stopChan:
			return
		}
	}
}
