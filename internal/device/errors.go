package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrFiltered) {
//	    // counted, nothing changed
//	}
var (
	// ErrDeviceNotFound is returned when an address is not in the catalog.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrNoAddress is returned by Observe for a record without an address.
	ErrNoAddress = errors.New("device: record has no address")

	// ErrFiltered is returned by Observe when a filter rejected the record.
	ErrFiltered = errors.New("device: filtered")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidAddress is returned when an address is not canonical.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrStoreUnavailable wraps every persistence failure seen by the Tracker.
	ErrStoreUnavailable = errors.New("device: store unavailable")
)
