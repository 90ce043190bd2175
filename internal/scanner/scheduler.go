package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/process"
	"github.com/nerrad567/blue-hydra/internal/telemetry"
)

// Defaults for Config.
const (
	DefaultWorkers           = 2
	DefaultMaxTries          = 3
	DefaultRetryInitialDelay = 2 * time.Second
	DefaultResyncSchedule    = "@daily"
	DefaultBreakerFailures   = 5
	DefaultBreakerTimeout    = 60 * time.Second
)

// Config holds the scheduler cadences and limits.
type Config struct {
	// Device is the HCI interface active scans are issued on.
	Device string

	// HcitoolBinary issues the active info scans.
	HcitoolBinary string

	// StatusInterval is the sweep cadence.
	StatusInterval time.Duration

	// InfoScanInterval is the active scan cadence. Zero disables active
	// scanning.
	InfoScanInterval time.Duration

	// Workers bounds concurrent active scan commands.
	Workers int

	// MaxTries is the number of attempts per active scan.
	MaxTries int

	// RetryInitialDelay is the first backoff delay; it doubles per attempt.
	RetryInitialDelay time.Duration

	// RestartWindow: a second monitor failure within it is fatal.
	RestartWindow time.Duration

	// ResyncSchedule is a cron expression for the full catalog resync.
	// Empty disables it.
	ResyncSchedule string

	// BreakerFailures consecutive command failures open the breaker for
	// BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Chunker btmon.ChunkerConfig
}

func (c Config) withDefaults() Config {
	if c.HcitoolBinary == "" {
		c.HcitoolBinary = "hcitool"
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = device.DefaultScanInterval
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxTries <= 0 {
		c.MaxTries = DefaultMaxTries
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = DefaultRetryInitialDelay
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = DefaultBreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = DefaultBreakerTimeout
	}
	return c
}

// Catalog is the part of the device tracker the scheduler drives.
// *device.Tracker implements it.
type Catalog interface {
	Observe(ctx context.Context, rec btmon.AttributeRecord, observedAt time.Time) (string, error)
	Sweep(ctx context.Context, now time.Time) ([]device.Transition, error)
	DueForRefresh(now time.Time, interval time.Duration) []device.RefreshTarget
	MarkRefreshed(address string, at time.Time)
	Snapshot() []device.Device
}

// Resyncer receives the whole catalog on every scheduled resync.
type Resyncer interface {
	Resync(ctx context.Context, devices []device.Device) int
}

// LineMirror receives every raw monitor line. It must not block.
type LineMirror interface {
	MirrorLine(btmon.RawLine)
}

// Logger defines the logging interface for the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Scheduler runs the sensor pipeline.
//
// One ingestion goroutine owns the Chunker and Parser and feeds the
// Catalog. One timer goroutine runs sweeps, active-scan dispatch and the
// resync schedule. Active scans run on a bounded pool and never block the
// timer.
type Scheduler struct {
	cfg      Config
	source   LineSource
	catalog  Catalog
	runner   process.Runner
	sink     telemetry.Sink
	resyncer Resyncer
	mirror   LineMirror
	logger   Logger
	now      func() time.Time

	chunker  *btmon.Chunker
	parser   *btmon.Parser
	policy   *process.RestartPolicy
	breaker  *gobreaker.CircuitBreaker[process.Result]
	schedule cron.Schedule
	pool     *errgroup.Group

	counters counters
}

type counters struct {
	emptyRecords  atomic.Uint64
	observations  atomic.Uint64
	noAddress     atomic.Uint64
	filtered      atomic.Uint64
	sweeps        atomic.Uint64
	transitions   atomic.Uint64
	scansQueued   atomic.Uint64
	scansSkipped  atomic.Uint64
	scansOK       atomic.Uint64
	scansFailed   atomic.Uint64
	restarts      atomic.Uint64
	resyncs       atomic.Uint64
	observeErrors atomic.Uint64
}

// NewScheduler creates a scheduler.
//
// Parameters:
//   - cfg: cadences and limits (zero values select defaults)
//   - source: monitor line stream
//   - catalog: device tracker
//   - runner: executes active scan commands
//
// Returns an error if cfg.ResyncSchedule is not a valid cron expression.
func NewScheduler(cfg Config, source LineSource, catalog Catalog, runner process.Runner) (*Scheduler, error) {
	cfg = cfg.withDefaults()

	s := &Scheduler{
		cfg:     cfg,
		source:  source,
		catalog: catalog,
		runner:  runner,
		sink:    telemetry.Discard{},
		logger:  noopLogger{},
		now:     time.Now,
		chunker: btmon.NewChunker(cfg.Chunker),
		parser:  btmon.NewParser(),
		policy:  process.NewRestartPolicy(cfg.RestartWindow, process.DefaultMaxRestarts),
		pool:    new(errgroup.Group),
	}
	s.pool.SetLimit(cfg.Workers)

	if cfg.ResyncSchedule != "" {
		sched, err := cron.ParseStandard(cfg.ResyncSchedule)
		if err != nil {
			return nil, fmt.Errorf("parsing resync schedule %q: %w", cfg.ResyncSchedule, err)
		}
		s.schedule = sched
	}

	s.breaker = gobreaker.NewCircuitBreaker[process.Result](gobreaker.Settings{
		Name:        "active-scan",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return s, nil
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetSink sets the telemetry sink for operator events.
func (s *Scheduler) SetSink(sink telemetry.Sink) {
	s.sink = sink
}

// SetResyncer sets the target of the scheduled catalog resync.
func (s *Scheduler) SetResyncer(r Resyncer) {
	s.resyncer = r
}

// SetRawMirror installs a mirror for every raw monitor line.
func (s *Scheduler) SetRawMirror(m LineMirror) {
	s.mirror = m
}

// SetChunkMirror installs a mirror for every reconstructed chunk.
func (s *Scheduler) SetChunkMirror(m btmon.Mirror) {
	s.chunker.SetMirror(m)
}

// Run starts the line source and runs the pipeline until ctx is cancelled,
// a finite source ends, or a fatal condition occurs. The latter returns an
// error wrapping ErrFatal; the other two return nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scan scheduler starting",
		"device", s.cfg.Device,
		"status_interval", s.cfg.StatusInterval,
		"info_scan_interval", s.cfg.InfoScanInterval,
		"workers", s.cfg.Workers,
	)

	if err := s.source.Start(ctx); err != nil {
		return s.fatal(ctx, telemetry.KeyBtmonExited, "Blue Hydra cannot start btmon", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ingest(gctx) })
	g.Go(func() error { return s.runTimers(gctx) })

	err := g.Wait()
	// In-flight commands were signalled through gctx; wait for them.
	s.pool.Wait() //nolint:errcheck // workers never return errors

	if errors.Is(err, ErrSourceDone) {
		s.logger.Info("line source finished")
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("scan scheduler stopped")
	return nil
}

// ingest drains the line source until ctx is done or the source ends. The
// source is stopped when ingestion fails.
func (s *Scheduler) ingest(ctx context.Context) error {
	err := s.ingestLoop(ctx)
	if err != nil && !errors.Is(err, ErrSourceDone) {
		if stopErr := s.source.Stop(); stopErr != nil {
			s.logger.Warn("stopping line source failed", "error", stopErr)
		}
	}
	return err
}

func (s *Scheduler) ingestLoop(ctx context.Context) error {
	lines, exits := s.source.Lines(), s.source.Exits()
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(ctx)

		case line := <-lines:
			if err := s.handleLine(ctx, line); err != nil {
				return err
			}

		case exitErr := <-exits:
			// Every line of the run is already buffered.
			if err := s.drain(ctx, lines); err != nil {
				return err
			}
			if err := s.flush(ctx); err != nil {
				return err
			}
			if exitErr == nil || errors.Is(exitErr, ErrSourceDone) {
				return ErrSourceDone
			}
			if err := s.restart(ctx, exitErr); err != nil {
				return err
			}
		}
	}
}

// restart applies the restart policy after a monitor failure.
func (s *Scheduler) restart(ctx context.Context, cause error) error {
	if !s.policy.Allow(s.now()) {
		return s.fatal(ctx, telemetry.KeyBtmonExited,
			"Blue Hydra btmon exited repeatedly", cause)
	}

	s.counters.restarts.Add(1)
	s.logger.Warn("monitor exited, restarting", "error", cause)
	s.send(ctx, telemetry.Event{
		Key:      telemetry.KeyBtmonRestarted,
		Title:    "Blue Hydra restarted btmon",
		Message:  cause.Error(),
		Severity: telemetry.SeverityWarn,
	})

	if err := s.source.Start(ctx); err != nil {
		return s.fatal(ctx, telemetry.KeyBtmonExited, "Blue Hydra cannot restart btmon", err)
	}
	return nil
}

// shutdown stops the source and processes what it already produced,
// including the final partial chunk.
func (s *Scheduler) shutdown(ctx context.Context) error {
	if err := s.source.Stop(); err != nil {
		s.logger.Warn("stopping line source failed", "error", err)
	}

	final := context.WithoutCancel(ctx)
	if err := s.drain(final, s.source.Lines()); err != nil {
		s.logger.Error("processing buffered lines at shutdown failed", "error", err)
		return nil
	}
	if err := s.flush(final); err != nil {
		s.logger.Error("processing final chunk failed", "error", err)
	}
	return nil
}

// drain processes every line currently buffered without waiting for more.
func (s *Scheduler) drain(ctx context.Context, lines <-chan btmon.RawLine) error {
	for {
		select {
		case line := <-lines:
			if err := s.handleLine(ctx, line); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// flush processes the chunk still open in the chunker.
func (s *Scheduler) flush(ctx context.Context) error {
	chunk, ok := s.chunker.Flush()
	if !ok {
		return nil
	}
	return s.handleChunk(ctx, chunk)
}

func (s *Scheduler) handleLine(ctx context.Context, line btmon.RawLine) error {
	if s.mirror != nil {
		s.mirror.MirrorLine(line)
	}
	for _, chunk := range s.chunker.Feed(line) {
		if err := s.handleChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// handleChunk parses one chunk and hands each device record to the catalog.
// Only a store failure is returned; everything else is counted.
func (s *Scheduler) handleChunk(ctx context.Context, chunk btmon.Chunk) error {
	observedAt := s.now()
	if len(chunk.Lines) > 0 && !chunk.Lines[0].ReceivedAt.IsZero() {
		observedAt = chunk.Lines[0].ReceivedAt
	}

	observed := false
	for _, rec := range s.parser.ParseAll(chunk) {
		if rec.IsEmpty() {
			continue
		}
		observed = true
		if err := s.observe(ctx, rec, observedAt); err != nil {
			return err
		}
	}
	if !observed {
		s.counters.emptyRecords.Add(1)
	}
	return nil
}

func (s *Scheduler) observe(ctx context.Context, rec btmon.AttributeRecord, observedAt time.Time) error {
	_, err := s.catalog.Observe(ctx, rec, observedAt)
	switch {
	case err == nil:
		s.counters.observations.Add(1)
	case errors.Is(err, device.ErrNoAddress):
		s.counters.noAddress.Add(1)
	case errors.Is(err, device.ErrFiltered):
		s.counters.filtered.Add(1)
	case errors.Is(err, device.ErrStoreUnavailable):
		return s.fatal(ctx, telemetry.KeyStoreUnavailable, "Blue Hydra device store unavailable", err)
	default:
		s.counters.observeErrors.Add(1)
		s.logger.Warn("observation rejected", "address", rec.Address, "error", err)
	}
	return nil
}

// runTimers drives sweeps, active scans and the resync schedule.
func (s *Scheduler) runTimers(ctx context.Context) error {
	sweepTicker := time.NewTicker(s.cfg.StatusInterval)
	defer sweepTicker.Stop()

	var infoC <-chan time.Time
	if s.cfg.InfoScanInterval > 0 {
		infoTicker := time.NewTicker(s.cfg.InfoScanInterval)
		defer infoTicker.Stop()
		infoC = infoTicker.C
	}

	if s.schedule != nil {
		c := cron.New()
		c.Schedule(s.schedule, cron.FuncJob(func() { s.resync(ctx) }))
		c.Start()
		defer func() {
			<-c.Stop().Done()
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweepTicker.C:
			if err := s.sweep(ctx); err != nil {
				return err
			}
		case <-infoC:
			s.dispatchScans(ctx)
		}
	}
}

// sweep runs one status sweep. Only a store failure is returned.
func (s *Scheduler) sweep(ctx context.Context) error {
	transitions, err := s.catalog.Sweep(ctx, s.now())
	s.counters.sweeps.Add(1)
	s.counters.transitions.Add(uint64(len(transitions)))
	if err == nil {
		if len(transitions) > 0 {
			s.logger.Debug("sweep complete", "transitions", len(transitions))
		}
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, device.ErrStoreUnavailable) {
		return s.fatal(ctx, telemetry.KeyStoreUnavailable, "Blue Hydra device store unavailable", err)
	}
	s.logger.Warn("sweep failed", "error", err)
	return nil
}

// dispatchScans queues active scans for due devices until the pool is full.
// Devices that do not fit wait for the next tick.
func (s *Scheduler) dispatchScans(ctx context.Context) {
	now := s.now()
	targets := s.catalog.DueForRefresh(now, s.cfg.InfoScanInterval)
	for i, target := range targets {
		if ctx.Err() != nil {
			return
		}
		if !s.pool.TryGo(func() error {
			s.scan(ctx, target)
			return nil
		}) {
			s.counters.scansSkipped.Add(uint64(len(targets) - i))
			return
		}
		s.catalog.MarkRefreshed(target.Address, now)
		s.counters.scansQueued.Add(1)
	}
}

// scan runs one active scan with retry behind the circuit breaker.
func (s *Scheduler) scan(ctx context.Context, target device.RefreshTarget) {
	_, err := runWithRetry(ctx, s.breaker, s.runner, s.cfg.HcitoolBinary, scanArgs(s.cfg.Device, target),
		s.cfg.MaxTries, s.cfg.RetryInitialDelay,
		func(err error, wait time.Duration) {
			s.logger.Debug("active scan retry", "address", target.Address, "error", err, "wait", wait)
		})
	if err == nil {
		s.counters.scansOK.Add(1)
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.counters.scansFailed.Add(1)
	s.logger.Warn("active scan failed", "address", target.Address, "kind", target.Kind, "error", err)
	s.send(ctx, telemetry.Event{
		Key:      telemetry.KeyInfoScanFailed,
		Title:    fmt.Sprintf("Blue Hydra info scan failed for %s", target.Address),
		Message:  err.Error(),
		Severity: telemetry.SeverityWarn,
	})
}

// scanArgs builds the hcitool arguments for a target.
func scanArgs(dev string, target device.RefreshTarget) []string {
	cmd := "info"
	if target.Kind == device.RefreshLE {
		cmd = "leinfo"
	}
	return []string{"-i", dev, cmd, target.Address}
}

// resync hands the whole catalog to the resyncer.
func (s *Scheduler) resync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	devices := s.catalog.Snapshot()
	queued := len(devices)
	if s.resyncer != nil {
		queued = s.resyncer.Resync(ctx, devices)
	}
	s.counters.resyncs.Add(1)
	s.logger.Info("catalog resync", "devices", len(devices), "queued", queued)
}

// fatal reports a terminal event and returns the error Run ends with.
func (s *Scheduler) fatal(ctx context.Context, key, title string, cause error) error {
	s.logger.Error(title, "error", cause)
	s.send(ctx, telemetry.Event{
		Key:      key,
		Title:    title,
		Message:  cause.Error(),
		Severity: telemetry.SeverityFatal,
	})
	return fmt.Errorf("%w: %s: %w", ErrFatal, title, cause)
}

func (s *Scheduler) send(ctx context.Context, ev telemetry.Event) {
	if err := s.sink.SendEvent(context.WithoutCancel(ctx), telemetry.Source, ev); err != nil {
		s.logger.Warn("telemetry event not delivered", "key", ev.Key, "error", err)
	}
}

// Stats holds the pipeline counters.
type Stats struct {
	Chunker       btmon.ChunkerStats `json:"chunker"`
	EmptyRecords  uint64             `json:"empty_records"`
	Observations  uint64             `json:"observations"`
	NoAddress     uint64             `json:"no_address"`
	Filtered      uint64             `json:"filtered"`
	ObserveErrors uint64             `json:"observe_errors"`
	Sweeps        uint64             `json:"sweeps"`
	Transitions   uint64             `json:"transitions"`
	ScansQueued   uint64             `json:"scans_queued"`
	ScansSkipped  uint64             `json:"scans_skipped"`
	ScansOK       uint64             `json:"scans_ok"`
	ScansFailed   uint64             `json:"scans_failed"`
	Restarts      uint64             `json:"restarts"`
	Resyncs       uint64             `json:"resyncs"`
	Breaker       string             `json:"breaker"`
}

// Stats returns current pipeline counters. Safe to call from any goroutine.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Chunker:       s.chunker.Stats(),
		EmptyRecords:  s.counters.emptyRecords.Load(),
		Observations:  s.counters.observations.Load(),
		NoAddress:     s.counters.noAddress.Load(),
		Filtered:      s.counters.filtered.Load(),
		ObserveErrors: s.counters.observeErrors.Load(),
		Sweeps:        s.counters.sweeps.Load(),
		Transitions:   s.counters.transitions.Load(),
		ScansQueued:   s.counters.scansQueued.Load(),
		ScansSkipped:  s.counters.scansSkipped.Load(),
		ScansOK:       s.counters.scansOK.Load(),
		ScansFailed:   s.counters.scansFailed.Load(),
		Restarts:      s.counters.restarts.Load(),
		Resyncs:       s.counters.resyncs.Load(),
		Breaker:       s.breaker.State().String(),
	}
}
