package btmon

import (
	"slices"
	"strings"
)

// AddressType distinguishes public from random LE addresses.
type AddressType string

// Address types. Classic addresses are always public.
const (
	AddressPublic AddressType = "public"
	AddressRandom AddressType = "random"
)

// Valid signal ranges in dBm. Values outside are discarded.
const (
	MinRSSI    = -127
	MaxRSSI    = 20
	MinTxPower = -127
	MaxTxPower = 20
)

// AttributeRecord holds the device attributes extracted from one chunk.
// String fields are unset when empty; pointers are unset when nil.
type AttributeRecord struct {
	Address     string      `json:"address,omitempty"`
	AddressType AddressType `json:"address_type,omitempty"`
	Name        string      `json:"name,omitempty"`

	// Company comes from manufacturer-specific advertising data.
	Company string `json:"company,omitempty"`

	// Vendor comes from the address prefix.
	Vendor string `json:"vendor,omitempty"`

	ClassOfDevice string `json:"class_of_device,omitempty"`
	MajorClass    string `json:"major_class,omitempty"`
	MinorClass    string `json:"minor_class,omitempty"`
	Appearance    string `json:"appearance,omitempty"`

	// LEFlags and ServiceUUIDs are sorted and free of duplicates.
	LEFlags      []string `json:"le_flags,omitempty"`
	ServiceUUIDs []string `json:"service_uuids,omitempty"`

	ProximityUUID string `json:"proximity_uuid,omitempty"`
	Major         string `json:"major,omitempty"`
	Minor         string `json:"minor,omitempty"`

	RSSI    *int `json:"rssi,omitempty"`
	TxPower *int `json:"tx_power,omitempty"`

	Classic bool `json:"classic,omitempty"`
	LE      bool `json:"le,omitempty"`

	// Event names the marker that set Classic or LE.
	Event string `json:"event,omitempty"`
}

// IsEmpty reports whether no field is set.
func (r AttributeRecord) IsEmpty() bool {
	return r.Address == "" &&
		r.AddressType == "" &&
		r.Name == "" &&
		r.Company == "" &&
		r.Vendor == "" &&
		r.ClassOfDevice == "" &&
		r.MajorClass == "" &&
		r.MinorClass == "" &&
		r.Appearance == "" &&
		len(r.LEFlags) == 0 &&
		len(r.ServiceUUIDs) == 0 &&
		r.ProximityUUID == "" &&
		r.Major == "" &&
		r.Minor == "" &&
		r.RSSI == nil &&
		r.TxPower == nil &&
		!r.Classic &&
		!r.LE &&
		r.Event == ""
}

// ProximityID returns "<uuid>-<major>-<minor>" in lower case, or "" when
// the record carries no proximity UUID.
func (r AttributeRecord) ProximityID() string {
	return ProximityID(r.ProximityUUID, r.Major, r.Minor)
}

// ProximityID builds the lower-case beacon identifier used by the
// proximity filters.
func ProximityID(uuid, major, minor string) string {
	if uuid == "" {
		return ""
	}
	parts := []string{uuid}
	if major != "" || minor != "" {
		parts = append(parts, major, minor)
	}
	return strings.ToLower(strings.Join(parts, "-"))
}

// CanonicalAddress normalises a hardware address to upper-case,
// colon-delimited form. "-" separators are accepted. The all-zero and
// all-ones addresses are rejected.
func CanonicalAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 17 {
		return "", false
	}
	b := []byte(strings.ToUpper(s))
	for i := range b {
		if i%3 == 2 {
			if b[i] != ':' && b[i] != '-' {
				return "", false
			}
			b[i] = ':'
			continue
		}
		if !isHex(b[i]) {
			return "", false
		}
	}
	out := string(b)
	if out == "00:00:00:00:00:00" || out == "FF:FF:FF:FF:FF:FF" {
		return "", false
	}
	return out, true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

// set accumulates a string set during a parse.
type set map[string]struct{}

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
