package telemetry

import (
	"context"
	"fmt"

	"github.com/nerrad567/blue-hydra/internal/device"
)

// StatusEvents reports device status transitions as INFO events. It
// implements device.StatusNotifier and is registered whatever transports are
// configured, so the log sink always records transitions.
type StatusEvents struct {
	sink Sink
}

// NewStatusEvents creates a notifier sending to sink.
func NewStatusEvents(sink Sink) *StatusEvents {
	if sink == nil {
		sink = Discard{}
	}
	return &StatusEvents{sink: sink}
}

// NotifyStatus implements device.StatusNotifier. Delivery failures are
// dropped; each sink already accounts for its own.
func (n *StatusEvents) NotifyStatus(ctx context.Context, tr device.Transition, d *device.Device) {
	label := tr.Address
	if d != nil && d.Name != "" {
		label = fmt.Sprintf("%s (%s)", d.Name, tr.Address)
	}

	_ = n.sink.SendEvent(ctx, Source, Event{ //nolint:errcheck // fire-and-forget
		Key:      KeyDeviceStatusChange,
		Title:    "Device status change",
		Message:  fmt.Sprintf("%s %s -> %s", label, tr.From, tr.To),
		Severity: SeverityInfo,
		Time:     tr.At,
	})
}
