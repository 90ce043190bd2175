package device

import (
	"slices"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// newDevice creates the catalog entry for the first accepted record of an
// address. Status starts at new; the sweep promotes it.
func newDevice(address string, at time.Time) *Device {
	return &Device{
		Address:   address,
		Status:    StatusNew,
		FirstSeen: at,
		LastSeen:  at,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Merge folds an observation into d.
//
// Scalars are replaced only by a present value from an observation that is
// not older than the last one merged; an older observation may still fill
// fields that were never set. Sets only grow. Classic and LE only turn on.
// LastSeen only advances and FirstSeen only moves back.
func Merge(d *Device, rec btmon.AttributeRecord, at time.Time) {
	newer := !at.Before(d.LastSeen)

	mergeString(&d.Name, rec.Name, newer)
	mergeString(&d.Vendor, rec.Vendor, newer)
	mergeString(&d.Company, rec.Company, newer)
	mergeString(&d.ClassOfDevice, rec.ClassOfDevice, newer)
	mergeString(&d.MajorClass, rec.MajorClass, newer)
	mergeString(&d.MinorClass, rec.MinorClass, newer)
	mergeString(&d.Appearance, rec.Appearance, newer)
	mergeString(&d.ProximityUUID, rec.ProximityUUID, newer)
	mergeString(&d.Major, rec.Major, newer)
	mergeString(&d.Minor, rec.Minor, newer)

	if rec.AddressType != "" && (newer || d.AddressType == "") {
		d.AddressType = rec.AddressType
	}

	d.LEFlags = union(d.LEFlags, rec.LEFlags)
	d.ServiceUUIDs = union(d.ServiceUUIDs, rec.ServiceUUIDs)

	d.Classic = d.Classic || rec.Classic
	d.LE = d.LE || rec.LE

	if rec.RSSI != nil && (newer || d.LastRSSI == nil) {
		d.LastRSSI = clonePtr(rec.RSSI)
	}
	if rec.TxPower != nil && (newer || d.LastTxPower == nil) {
		d.LastTxPower = clonePtr(rec.TxPower)
	}
	if rec.RSSI != nil && rec.TxPower != nil && (newer || d.Range == nil) {
		est := EstimateRange(*rec.TxPower, *rec.RSSI)
		d.Range = &est
	}

	if at.After(d.LastSeen) {
		d.LastSeen = at
	}
	if at.Before(d.FirstSeen) {
		d.FirstSeen = at
	}
}

func mergeString(dst *string, v string, newer bool) {
	if v == "" {
		return
	}
	if newer || *dst == "" {
		*dst = v
	}
}

// union returns the sorted, de-duplicated union of a and b.
func union(a, b []string) []string {
	if len(b) == 0 {
		if a == nil {
			return []string{}
		}
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
