package device

import (
	"fmt"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// ValidateDevice checks a device before it is written.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if err := ValidateAddress(d.Address); err != nil {
		return err
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	if d.FirstSeen.IsZero() || d.LastSeen.IsZero() {
		return fmt.Errorf("%w: first_seen and last_seen are required", ErrInvalidDevice)
	}
	if d.LastSeen.Before(d.FirstSeen) {
		return fmt.Errorf("%w: last_seen before first_seen", ErrInvalidDevice)
	}
	switch d.AddressType {
	case "", btmon.AddressPublic, btmon.AddressRandom:
	default:
		return fmt.Errorf("%w: address type %q", ErrInvalidDevice, d.AddressType)
	}
	return nil
}

// ValidateAddress checks that address is already in canonical form.
func ValidateAddress(address string) error {
	c, ok := btmon.CanonicalAddress(address)
	if !ok || c != address {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}
