package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementSignal holds one row per RSSI observation.
const MeasurementSignal = "bluetooth_signal"

// SignalPoint is a single RSSI observation of one device.
type SignalPoint struct {
	Address string
	// Mode is "classic", "le" or "dual".
	Mode    string
	RSSI    int
	TxPower *int
	// Meters and Bucket are set when a range estimate exists.
	Meters *float64
	Bucket string
	Time   time.Time
}

// WriteSignal queues an RSSI observation. The write is non-blocking and is
// dropped silently when the client is not connected.
//
// Example:
//
//	client.WriteSignal(influxdb.SignalPoint{
//	    Address: "AA:BB:CC:DD:EE:FF", Mode: "le", RSSI: -67, Time: seen,
//	})
func (c *Client) WriteSignal(s SignalPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newSignalPoint(c.sensor, s))
}

func newSignalPoint(sensor string, s SignalPoint) *write.Point {
	tags := map[string]string{
		"sensor":  sensor,
		"address": s.Address,
	}
	if s.Mode != "" {
		tags["mode"] = s.Mode
	}

	fields := map[string]interface{}{
		"rssi": s.RSSI,
	}
	if s.TxPower != nil {
		fields["tx_power"] = *s.TxPower
	}
	if s.Meters != nil {
		fields["range_meters"] = *s.Meters
		tags["range_bucket"] = s.Bucket
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementSignal, tags, fields, ts)
}
