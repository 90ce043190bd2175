package telemetry

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/blue-hydra/internal/device"
)

// Default aggressive RSSI budget: ten signals per second, bursts of fifty.
const (
	DefaultSignalRate  = 10
	DefaultSignalBurst = 50
)

// SignalPublisher accepts individual RSSI observations.
type SignalPublisher interface {
	PublishSignal(sig device.Signal) error
}

// SignalForwarder forwards RSSI observations to the telemetry transport when
// aggressive RSSI reporting is on. A token bucket bounds the rate; signals
// over budget are dropped and counted.
type SignalForwarder struct {
	pub     SignalPublisher
	limiter *rate.Limiter

	forwarded atomic.Uint64
	throttled atomic.Uint64
	failed    atomic.Uint64
}

// NewSignalForwarder creates a forwarder allowing perSecond signals per
// second with the given burst. Zero values select the defaults.
func NewSignalForwarder(pub SignalPublisher, perSecond float64, burst int) *SignalForwarder {
	if perSecond <= 0 {
		perSecond = DefaultSignalRate
	}
	if burst <= 0 {
		burst = DefaultSignalBurst
	}
	return &SignalForwarder{
		pub:     pub,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// ObserveSignal implements device.SignalObserver.
func (f *SignalForwarder) ObserveSignal(sig device.Signal) {
	if !f.limiter.AllowN(time.Now(), 1) {
		f.throttled.Add(1)
		return
	}
	if err := f.pub.PublishSignal(sig); err != nil {
		f.failed.Add(1)
		return
	}
	f.forwarded.Add(1)
}

// ForwarderStats holds forwarding counters.
type ForwarderStats struct {
	Forwarded uint64 `json:"forwarded"`
	Throttled uint64 `json:"throttled"`
	Failed    uint64 `json:"failed"`
}

// Stats returns forwarding counters.
func (f *SignalForwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Forwarded: f.forwarded.Load(),
		Throttled: f.throttled.Load(),
		Failed:    f.failed.Load(),
	}
}
