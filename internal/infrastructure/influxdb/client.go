package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10

	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client for the signal time series.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Writes are non-blocking and batched.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	sensor   string

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication and batching options
//  2. Verifies connectivity with a ping
//  3. Configures the non-blocking write API
//  4. Drains async write errors into the SetOnError callback
//
// Parameters:
//   - cfg: InfluxDB configuration
//   - sensorID: Written as the "sensor" tag on every point
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the cause
func Connect(cfg config.InfluxDBConfig, sensorID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize, flushInterval := batchSettings(cfg)

	// #nosec G115 -- batchSettings returns positive values
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		sensor:    sensorID,
		connected: true,
	}
	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

// batchSettings returns the batch size and flush interval (seconds), falling
// back to defaults for non-positive values.
func batchSettings(cfg config.InfluxDBConfig) (batchSize, flushInterval int) {
	batchSize = cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval = cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return batchSize, flushInterval
}

func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending writes and closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback for async write errors.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
