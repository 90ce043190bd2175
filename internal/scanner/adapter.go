package scanner

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/process"
)

var macPattern = regexp.MustCompile(`(?i)((?:[0-9a-f]{2}[:-]){5}[0-9a-f]{2})`)

// LocalAdapterAddress returns the address of the local controller by
// running "<binary> <device>" and taking the first MAC in its output.
//
// Returns an error wrapping ErrNoAdapterAddress when the command fails or
// prints no address.
func LocalAdapterAddress(ctx context.Context, runner process.Runner, binary, device string) (string, error) {
	res, err := runner.Execute(ctx, binary, device)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoAdapterAddress, device, err)
	}
	m := macPattern.FindString(res.Stdout)
	if m == "" {
		return "", fmt.Errorf("%w: %s: no address in output", ErrNoAdapterAddress, device)
	}
	addr, ok := btmon.CanonicalAddress(m)
	if !ok {
		return "", fmt.Errorf("%w: %s: invalid address %q", ErrNoAdapterAddress, device, m)
	}
	return addr, nil
}
