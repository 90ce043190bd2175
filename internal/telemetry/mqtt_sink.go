package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/mqtt"
)

const defaultQueueSize = 256

// Publisher is the transport used by MQTTSink.
// This is typically implemented by *mqtt.Client.
type Publisher interface {
	PublishEvent(topic string, payload []byte) error
	PublishRetained(topic string, payload []byte) error
	IsConnected() bool
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// MQTTSink delivers events and device state over MQTT.
//
// Every Send* call only encodes and enqueues; a single goroutine drains the
// queue. When the queue is full the message is dropped and counted.
//
// Topics:
//   - events:       bluehydra/{sensor}/events/{key}
//   - device state: bluehydra/{sensor}/devices/{address} (retained)
//   - signals:      bluehydra/{sensor}/signals
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	queue  chan message
	now    func() time.Time

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu     sync.RWMutex
	closed bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// NewMQTTSink creates a sink publishing through pub. Call Start to begin
// delivery and Close to drain and stop.
//
// Parameters:
//   - pub: MQTT transport
//   - topics: topic builder bound to this sensor
//   - queueSize: outbound buffer; <= 0 selects 256
func NewMQTTSink(pub Publisher, topics mqtt.Topics, queueSize int) *MQTTSink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &MQTTSink{
		pub:    pub,
		topics: topics,
		queue:  make(chan message, queueSize),
		now:    time.Now,
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for delivery failures.
func (s *MQTTSink) SetLogger(logger Logger) {
	s.logger = logger
}

// Start begins draining the queue.
func (s *MQTTSink) Start() {
	s.wg.Add(1)
	go s.publishLoop()
}

// Close stops accepting messages, publishes whatever is queued and waits for
// the delivery goroutine. Safe to call multiple times.
func (s *MQTTSink) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.wg.Wait()
	})
}

// SendEvent implements Sink. Missing ID, time and source are filled in.
func (s *MQTTSink) SendEvent(_ context.Context, source string, ev Event) error {
	if ev.Key == "" || ev.Severity == "" {
		return fmt.Errorf("%w: key and severity are required", ErrInvalidEvent)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = s.now().UTC()
	}
	ev.Source = source
	ev.Sensor = s.topics.Sensor

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return s.enqueue(message{topic: s.topics.Event(ev.Key), payload: payload})
}

// NotifyStatus publishes the device's current state as a retained message
// whenever the sweep changes its status.
func (s *MQTTSink) NotifyStatus(_ context.Context, tr device.Transition, d *device.Device) {
	if d == nil {
		return
	}
	payload, err := json.Marshal(deviceState{Device: d, PreviousStatus: tr.From, ChangedAt: tr.At})
	if err != nil {
		s.logger.Warn("encoding device state failed", "address", tr.Address, "error", err)
		return
	}
	if err := s.enqueue(message{topic: s.topics.Device(tr.Address), payload: payload, retained: true}); err != nil {
		s.logger.Debug("device state not queued", "address", tr.Address, "error", err)
	}
}

// Resync republishes the retained state of every device. It returns the
// number of devices queued; the rest were dropped.
func (s *MQTTSink) Resync(_ context.Context, devices []device.Device) int {
	queued := 0
	for i := range devices {
		d := &devices[i]
		payload, err := json.Marshal(deviceState{Device: d, PreviousStatus: d.Status, ChangedAt: d.UpdatedAt})
		if err != nil {
			continue
		}
		if err := s.enqueue(message{topic: s.topics.Device(d.Address), payload: payload, retained: true}); err != nil {
			continue
		}
		queued++
	}
	return queued
}

// PublishSignal queues one RSSI observation on the signals topic.
func (s *MQTTSink) PublishSignal(sig device.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}
	return s.enqueue(message{topic: s.topics.Signals(), payload: payload})
}

// deviceState is the retained device payload.
type deviceState struct {
	*device.Device
	PreviousStatus device.Status `json:"previous_status"`
	ChangedAt      time.Time     `json:"changed_at"`
}

func (s *MQTTSink) enqueue(m message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- m:
		return nil
	default:
		s.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrQueueFull, m.topic)
	}
}

func (s *MQTTSink) publishLoop() {
	defer s.wg.Done()
	for {
		select {
		case m := <-s.queue:
			s.publish(m)
		case <-s.done:
			// Drain what was accepted before Close.
			for {
				select {
				case m := <-s.queue:
					s.publish(m)
				default:
					return
				}
			}
		}
	}
}

func (s *MQTTSink) publish(m message) {
	var err error
	if m.retained {
		err = s.pub.PublishRetained(m.topic, m.payload)
	} else {
		err = s.pub.PublishEvent(m.topic, m.payload)
	}
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("telemetry publish failed", "topic", m.topic, "error", err)
		return
	}
	s.sent.Add(1)
}

// SinkStats holds delivery counters.
type SinkStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
	Queued  int    `json:"queued"`
}

// Stats returns delivery counters.
func (s *MQTTSink) Stats() SinkStats {
	return SinkStats{
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
		Failed:  s.failed.Load(),
		Queued:  len(s.queue),
	}
}
