package scanner

import "errors"

// Sentinel errors for the scan scheduler.
var (
	// ErrFatal wraps every condition that ends Run with a non-zero exit:
	// repeated monitor failure, store unavailable, unknown local adapter.
	ErrFatal = errors.New("scanner: fatal")

	// ErrSourceDone is reported on Exits by a finite line source (replay)
	// at end of input. Run treats it as a clean end.
	ErrSourceDone = errors.New("scanner: line source finished")

	// ErrNoAdapterAddress is returned when the local adapter address cannot
	// be read.
	ErrNoAdapterAddress = errors.New("scanner: unable to read local adapter address")
)
