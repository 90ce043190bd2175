// Package process runs the external programs the sensor depends on.
//
// Manager supervises the long-running monitor (btmon) through an explicit
// state machine: idle, starting, running, exited_clean, exited_error. Its
// stdout is split into numbered lines by a LineReader and delivered on one
// channel that spans restarts. Manager never restarts on its own; the
// caller consults a RestartPolicy.
//
// ExecRunner executes one-shot commands (hciconfig, hcitool) and gives
// them a grace period between SIGTERM and SIGKILL on cancellation.
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:   "btmon",
//	    Binary: "btmon",
//	    Args:   []string{"-T", "-i", "hci0"},
//	})
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
//
//	for line := range mgr.Lines() {
//	    ...
//	}
package process
