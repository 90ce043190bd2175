package device

import (
	"slices"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// Status is the position of a device in the presence state machine.
type Status string

// Device statuses. Only the sweep moves a device between them.
const (
	StatusNew     Status = "new"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusOld     Status = "old"
)

// AllStatuses returns every valid status in state machine order.
func AllStatuses() []Status {
	return []Status{StatusNew, StatusOnline, StatusOffline, StatusOld}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(AllStatuses(), s)
}

// Mode names which discovery paths have seen a device.
type Mode string

// Device modes.
const (
	ModeClassic Mode = "classic"
	ModeLE      Mode = "le"
	ModeDual    Mode = "dual"
	ModeUnknown Mode = "unknown"
)

// Range buckets.
const (
	BucketImmediate = "immediate"
	BucketNear      = "near"
	BucketFar       = "far"
)

// RangeEstimate is a distance derived from RSSI and advertised TX power.
type RangeEstimate struct {
	Meters float64 `json:"meters"`
	Bucket string  `json:"bucket"`
}

// Device is one catalog entry, keyed by canonical hardware address.
// This matches the devices table in migrations/20260301_090000_devices.up.sql.
type Device struct {
	// Identity
	Address     string            `json:"address"`
	AddressType btmon.AddressType `json:"address_type,omitempty"`

	// Descriptive attributes
	Name    string `json:"name,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
	Company string `json:"company,omitempty"`

	// Classification
	ClassOfDevice string   `json:"class_of_device,omitempty"`
	MajorClass    string   `json:"major_class,omitempty"`
	MinorClass    string   `json:"minor_class,omitempty"`
	Appearance    string   `json:"appearance,omitempty"`
	LEFlags       []string `json:"le_flags"`
	ServiceUUIDs  []string `json:"service_uuids"`

	// Beacon identity
	ProximityUUID string `json:"proximity_uuid,omitempty"`
	Major         string `json:"major,omitempty"`
	Minor         string `json:"minor,omitempty"`

	// Discovery paths (sticky)
	Classic bool `json:"classic"`
	LE      bool `json:"le"`

	// Signal
	LastRSSI    *int           `json:"last_rssi,omitempty"`
	LastTxPower *int           `json:"last_tx_power,omitempty"`
	Range       *RangeEstimate `json:"range,omitempty"`

	// Presence
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Status    Status    `json:"status"`

	// Ignored is derived from the ignore list at load time and never stored.
	Ignored bool `json:"ignored"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// Slices and pointers are cloned so the cache never leaks.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.LEFlags = slices.Clone(d.LEFlags)
	cpy.ServiceUUIDs = slices.Clone(d.ServiceUUIDs)
	cpy.LastRSSI = clonePtr(d.LastRSSI)
	cpy.LastTxPower = clonePtr(d.LastTxPower)
	cpy.Range = clonePtr(d.Range)
	return &cpy
}

// ProximityID returns the lower-case "<uuid>-<major>-<minor>" beacon
// identifier, or "" when the device never advertised one.
func (d *Device) ProximityID() string {
	return btmon.ProximityID(d.ProximityUUID, d.Major, d.Minor)
}

// Mode reports which discovery paths have seen the device.
func (d *Device) Mode() Mode {
	switch {
	case d.Classic && d.LE:
		return ModeDual
	case d.Classic:
		return ModeClassic
	case d.LE:
		return ModeLE
	default:
		return ModeUnknown
	}
}

// Transition records one status change made by a sweep.
type Transition struct {
	Address string    `json:"address"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	At      time.Time `json:"at"`
}

// Signal is one accepted observation that carried an RSSI reading.
type Signal struct {
	Address string         `json:"address"`
	Mode    Mode           `json:"mode"`
	RSSI    int            `json:"rssi"`
	TxPower *int           `json:"tx_power,omitempty"`
	Range   *RangeEstimate `json:"range,omitempty"`
	At      time.Time      `json:"at"`
}

// RefreshKind selects the active-scan command for a device.
type RefreshKind string

// Refresh kinds.
const (
	RefreshLE      RefreshKind = "le"
	RefreshClassic RefreshKind = "classic"
)

// RefreshTarget is a device selected for an active scan.
type RefreshTarget struct {
	Address string      `json:"address"`
	Kind    RefreshKind `json:"kind"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
