package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from the sensor config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and optional credentials
//   - Auto-reconnect with exponential backoff
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT makes the broker publish a retained offline status if the
// sensor disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics) {
	opts.SetWill(topics.Status(), buildStatusPayload(topics.Sensor, "offline", "unexpected_disconnect"), 1, true)
}

// buildStatusPayload creates the JSON body of a sensor status message.
// reason may be empty.
func buildStatusPayload(sensor, status, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"sensor":%q,"timestamp":%q}`, status, sensor, ts)
	}
	return fmt.Sprintf(`{"status":%q,"sensor":%q,"reason":%q,"timestamp":%q}`, status, sensor, reason, ts)
}
