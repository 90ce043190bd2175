package mqtt

import "fmt"

// maxPayloadSize caps a single message at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (see Topics)
//   - payload: The message payload (JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers.
//     Use for device state, not for events.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishEvent publishes a non-retained message with the configured QoS.
func (c *Client) PublishEvent(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}

// PublishRetained publishes a retained message with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}
