package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultLineBuffer      = 1024
)

// Config holds configuration for the supervised monitor process.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// MaxLineLength caps each stdout line; see LineReader.
	MaxLineLength int

	// LineBuffer is the capacity of the Lines channel.
	LineBuffer int
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises one long-running subprocess whose stdout is a line
// stream. Each Start begins a run; the run ends when stdout closes and the
// process has been reaped. The outcome of every run is delivered once on
// Exits. Whether to start again is the caller's decision (see
// RestartPolicy).
type Manager struct {
	config Config
	logger Logger
	reader *LineReader

	lines chan btmon.RawLine
	exits chan error

	mu            sync.RWMutex
	cmd           *exec.Cmd
	state         State
	runs          int
	lastError     error
	startTime     time.Time
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	// Apply defaults for zero values
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.LineBuffer <= 0 {
		cfg.LineBuffer = defaultLineBuffer
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		reader: NewLineReader(cfg.MaxLineLength),
		lines:  make(chan btmon.RawLine, cfg.LineBuffer),
		exits:  make(chan error, 1),
		state:  StateIdle,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Lines returns the stdout line stream. It spans every run and is never
// closed.
func (m *Manager) Lines() <-chan btmon.RawLine {
	return m.lines
}

// Exits delivers the outcome of each run: nil after a requested Stop,
// otherwise an error wrapping ErrExited.
func (m *Manager) Exits() <-chan error {
	return m.exits
}

// Start launches the subprocess and begins reading its output.
// ctx bounds the reader goroutine; use Stop to end the process itself.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateStarting || m.state == StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	if err := m.setStateLocked(StateStarting); err != nil {
		m.mu.Unlock()
		return err
	}
	m.stopRequested = false
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.startProcess(ctx); err != nil {
		m.mu.Lock()
		m.setStateLocked(StateExitedError) //nolint:errcheck // starting -> exited_error is always valid
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}
	return nil
}

// startProcess actually starts the subprocess.
func (m *Manager) startProcess(ctx context.Context) error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.Command(m.config.Binary, m.config.Args...) //nolint:gosec // Binary comes from operator config

	// Create a new process group so we can signal all children on shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Set environment
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	// Start the process
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.runs++
	m.startTime = time.Now()
	m.setStateLocked(StateRunning) //nolint:errcheck // starting -> running is always valid
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		m.captureStderr(stderr)
	}()
	go m.run(ctx, cmd, stdout, stderrDone, stopCh, done)

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)
	return nil
}

// run pumps stdout into Lines, reaps the process and reports the outcome.
func (m *Manager) run(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderrDone, stopCh, done chan struct{}) {
	defer close(done)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-readCtx.Done():
		}
	}()

	readErr := m.reader.Read(readCtx, stdout, m.lines)
	if readErr != nil && readCtx.Err() != nil {
		// Reader gave up before EOF; unblock the pipe so Wait can reap.
		m.signal(cmd, syscall.SIGTERM)
	}
	<-stderrDone
	waitErr := cmd.Wait()

	m.mu.Lock()
	requested := m.stopRequested
	var result error
	switch {
	case requested:
		m.setStateLocked(StateExitedClean) //nolint:errcheck // running -> exited_clean is always valid
	case readErr != nil && readCtx.Err() == nil:
		result = fmt.Errorf("%w: %s: reading output: %w", ErrExited, m.config.Name, readErr)
	case waitErr != nil:
		result = fmt.Errorf("%w: %s: %w", ErrExited, m.config.Name, waitErr)
	case ctx.Err() != nil:
		result = fmt.Errorf("%w: %s: %w", ErrExited, m.config.Name, ctx.Err())
	default:
		result = fmt.Errorf("%w: %s: end of output", ErrExited, m.config.Name)
	}
	if result != nil {
		if waitErr == nil && readErr == nil {
			m.setStateLocked(StateExitedClean) //nolint:errcheck // running -> exited_clean is always valid
		} else {
			m.setStateLocked(StateExitedError) //nolint:errcheck // running -> exited_error is always valid
		}
		m.lastError = result
	}
	m.mu.Unlock()

	if requested {
		m.logger.Info("process stopped as requested", "name", m.config.Name)
	} else {
		m.logger.Warn("process exited unexpectedly", "name", m.config.Name, "error", result)
	}

	// One outcome per run; the buffer holds it until the caller reads.
	select {
	case m.exits <- result:
	default:
		m.logger.Warn("previous exit not consumed, dropping", "name", m.config.Name)
	}
}

// captureStderr logs each stderr line at debug level.
func (m *Manager) captureStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", "stderr",
			"output", scanner.Text(),
		)
	}
	// Keep the pipe drained after an overlong line stops the scanner.
	_, _ = io.Copy(io.Discard, r) //nolint:errcheck // best effort
}

// Stop gracefully stops the subprocess.
// It sends SIGTERM and waits for graceful shutdown, then SIGKILL if needed.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return nil
	}
	m.stopRequested = true
	cmd := m.cmd
	done := m.done // Capture done channel under lock to avoid race
	close(m.stopCh)
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	// Send SIGTERM to the entire process group for graceful shutdown
	m.signal(cmd, syscall.SIGTERM)

	// Wait for graceful shutdown or timeout
	select {
	case <-done:
		m.logger.Info("process stopped gracefully", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	// Force kill the entire process group
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
		}
	}

	// Wait for process to fully exit
	<-done
	m.logger.Info("process killed", "name", m.config.Name)

	return nil
}

// signal sends sig to the process group created via Setpgid.
func (m *Manager) signal(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to signal process group", "name", m.config.Name, "signal", sig, "error", err)
	}
}

func (m *Manager) setStateLocked(to State) error {
	if err := checkTransition(m.state, to); err != nil {
		m.logger.Error("process state machine violation", "name", m.config.Name, "error", err)
		return err
	}
	m.logger.Debug("process state", "name", m.config.Name, "from", m.state, "to", to)
	m.state = to
	return nil
}

// State returns the current state of the supervised process.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.State() == StateRunning
}

// LastError returns the error that ended the last unrequested run.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// Uptime returns how long the current run has been going.
// Returns 0 if the process is not running.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// PID returns the process ID, or 0 if not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Stats returns statistics about the managed process.
type Stats struct {
	Name      string        `json:"name"`
	State     State         `json:"state"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Runs      int           `json:"runs"`
	Lines     uint64        `json:"lines"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:  m.config.Name,
		State: m.state,
		Runs:  m.runs,
		Lines: m.reader.Delivered(),
	}

	if m.state == StateRunning && m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime)
	}

	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}

	return stats
}
