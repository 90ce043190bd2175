package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a run is in progress.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrNotRunning is returned by operations that need a live process.
	ErrNotRunning = errors.New("process: not running")

	// ErrInvalidTransition is returned when the state machine is asked to
	// make a move it does not allow.
	ErrInvalidTransition = errors.New("process: invalid state transition")

	// ErrExited wraps the reason a supervised process ended on its own.
	ErrExited = errors.New("process: exited")

	// ErrCommandFailed is returned by Execute when the command ran but
	// exited non-zero.
	ErrCommandFailed = errors.New("process: command failed")
)
