package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as a publish-only telemetry transport.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	connected bool
	connMu    sync.RWMutex

	onConnect  func()
	callbackMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect establishes a connection to the MQTT broker for the given sensor.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Registers a retained offline Last Will on bluehydra/{sensor}/status
//  3. Connects with a timeout
//  4. Publishes a retained online status on every (re)connect
//
// Parameters:
//   - cfg: MQTT configuration
//   - sensorID: Sensor identifier used in every topic
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker cannot be reached in time
func Connect(cfg config.MQTTConfig, sensorID string) (*Client, error) {
	c := newClient(cfg, sensorID)

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func newClient(cfg config.MQTTConfig, sensorID string) *Client {
	return &Client{
		cfg:    cfg,
		topics: Topics{Sensor: sensorID},
	}
}

// Topics returns the topic builder bound to this client's sensor.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, buildStatusPayload(c.topics.Sensor, "online", ""))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true,
			buildStatusPayload(c.topics.Sensor, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
// The telemetry sink uses it to republish retained device state.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
