package device

import (
	"cmp"
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// Defaults for TrackerConfig.
const (
	DefaultScanInterval    = 60 * time.Second
	DefaultOfflineMultiple = 3
	DefaultOldMultiple     = 120
)

const lockStripes = 64

// Logger defines the logging interface used by the Tracker.
// This allows different logging implementations to be used.
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

// StatusNotifier receives every transition made by a sweep, after it has
// been persisted. d is a copy of the device in its new state.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, t Transition, d *Device)
}

// SignalObserver receives every accepted observation that carried RSSI.
// Implementations must not block.
type SignalObserver interface {
	ObserveSignal(s Signal)
}

// TrackerConfig holds the presence thresholds and filters.
type TrackerConfig struct {
	// ScanInterval is the sweep cadence the thresholds are multiples of.
	ScanInterval time.Duration

	// OfflineMultiple × ScanInterval without an observation marks a
	// device offline.
	OfflineMultiple int

	// OldMultiple × ScanInterval without an observation marks it old.
	OldMultiple int

	Filter FilterConfig
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.OfflineMultiple <= 0 {
		c.OfflineMultiple = DefaultOfflineMultiple
	}
	if c.OldMultiple <= c.OfflineMultiple {
		c.OldMultiple = max(DefaultOldMultiple, c.OfflineMultiple+1)
	}
	return c
}

// OfflineAfter returns the silence after which a device goes offline.
func (c TrackerConfig) OfflineAfter() time.Duration {
	return time.Duration(c.OfflineMultiple) * c.ScanInterval
}

// OldAfter returns the silence after which a device goes old.
func (c TrackerConfig) OldAfter() time.Duration {
	return time.Duration(c.OldMultiple) * c.ScanInterval
}

// Tracker owns the device catalog. It merges observations into the
// catalog, runs the presence state machine and selects devices for active
// scans.
//
// The cache is populated on startup via Load and written through to the
// Repository on every change. Operations on one address are serialised by
// a striped lock, so an Observe and a Sweep for the same device never
// interleave.
//
// All public methods are thread-safe.
type Tracker struct {
	repo    Repository
	history StatusHistoryRepository
	filter  *Filter
	cfg     TrackerConfig
	logger  Logger

	cache   map[string]*Device // Cached devices by address
	cacheMu sync.RWMutex       // Protects cache
	stripes [lockStripes]sync.Mutex

	refreshed map[string]time.Time
	refreshMu sync.Mutex

	hooksMu   sync.RWMutex
	notifiers []StatusNotifier
	observers []SignalObserver

	observed    atomic.Uint64
	created     atomic.Uint64
	noAddress   atomic.Uint64
	transitions atomic.Uint64
	storeErrors atomic.Uint64
	filteredMu  sync.Mutex
	filtered    map[string]uint64
}

// NewTracker creates a tracker over repo.
func NewTracker(repo Repository, cfg TrackerConfig) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		repo:      repo,
		filter:    NewFilter(cfg.Filter),
		cfg:       cfg,
		logger:    noopLogger{},
		cache:     make(map[string]*Device),
		refreshed: make(map[string]time.Time),
		filtered:  make(map[string]uint64),
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// SetHistory enables recording of transitions. Recording failures are
// logged and never fail a sweep.
func (t *Tracker) SetHistory(h StatusHistoryRepository) {
	t.history = h
}

// AddStatusNotifier registers a transition listener.
func (t *Tracker) AddStatusNotifier(n StatusNotifier) {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.notifiers = append(t.notifiers, n)
}

// AddSignalObserver registers an RSSI listener.
func (t *Tracker) AddSignalObserver(o SignalObserver) {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.observers = append(t.observers, o)
}

// Config returns the effective configuration.
func (t *Tracker) Config() TrackerConfig {
	return t.cfg
}

// Load replaces the cache with the stored catalog.
// This should be called on application startup.
func (t *Tracker) Load(ctx context.Context) error {
	devices, err := t.repo.List(ctx)
	if err != nil {
		t.storeErrors.Add(1)
		return fmt.Errorf("%w: loading devices: %w", ErrStoreUnavailable, err)
	}

	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	t.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i].DeepCopy()
		d.Ignored = t.filter.Ignored(d.Address)
		t.cache[d.Address] = d
	}

	t.logger.Info("device catalog loaded", "count", len(devices))
	return nil
}

// Observe merges one parsed record into the catalog and returns the
// canonical address of the affected device.
//
// A record without an address returns ErrNoAddress and a filtered record
// returns ErrFiltered; neither changes anything, LastSeen included. A
// persistence failure returns an error wrapping ErrStoreUnavailable and
// leaves the cache unchanged.
//
// Observe never changes Status.
func (t *Tracker) Observe(ctx context.Context, rec btmon.AttributeRecord, observedAt time.Time) (string, error) {
	address, ok := btmon.CanonicalAddress(rec.Address)
	if rec.IsEmpty() || !ok {
		t.noAddress.Add(1)
		return "", ErrNoAddress
	}
	observedAt = observedAt.UTC()

	mu := t.stripe(address)
	mu.Lock()

	t.cacheMu.RLock()
	current := t.cache[address]
	t.cacheMu.RUnlock()

	if reason := t.filter.Check(address, rec, current); reason != "" {
		mu.Unlock()
		t.countFiltered(reason)
		t.logger.Debug("record filtered", "address", address, "reason", reason)
		return "", ErrFiltered
	}

	var d *Device
	if current == nil {
		d = newDevice(address, observedAt)
	} else {
		d = current.DeepCopy()
	}
	Merge(d, rec, observedAt)
	d.UpdatedAt = time.Now().UTC()

	if err := t.repo.Upsert(ctx, d); err != nil {
		mu.Unlock()
		t.storeErrors.Add(1)
		return "", fmt.Errorf("%w: upserting %s: %w", ErrStoreUnavailable, address, err)
	}

	t.cacheMu.Lock()
	t.cache[address] = d
	t.cacheMu.Unlock()

	var sig *Signal
	if rec.RSSI != nil {
		sig = &Signal{
			Address: address,
			Mode:    d.Mode(),
			RSSI:    *rec.RSSI,
			TxPower: clonePtr(rec.TxPower),
			At:      observedAt,
		}
		if rec.TxPower != nil {
			est := EstimateRange(*rec.TxPower, *rec.RSSI)
			sig.Range = &est
		}
	}
	mu.Unlock()

	t.observed.Add(1)
	if current == nil {
		t.created.Add(1)
		t.logger.Debug("device discovered", "address", address, "vendor", d.Vendor)
	}
	if sig != nil {
		t.emitSignal(*sig)
	}
	return address, nil
}

// Sweep recomputes the status of every device from the time elapsed since
// it was last seen and persists each change. Devices in new move on the
// first sweep after creation. Running Sweep again with the same now makes
// no further transitions.
//
// Transitions already persisted are returned together with any error.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) ([]Transition, error) {
	now = now.UTC()

	t.cacheMu.RLock()
	addresses := make([]string, 0, len(t.cache))
	for a := range t.cache {
		addresses = append(addresses, a)
	}
	t.cacheMu.RUnlock()
	slices.Sort(addresses)

	var out []Transition
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		tr, d, err := t.sweepOne(ctx, address, now)
		if err != nil {
			return out, err
		}
		if tr == nil {
			continue
		}
		out = append(out, *tr)
		t.transitions.Add(1)
		t.logger.Debug("device status changed", "address", address, "from", tr.From, "to", tr.To)

		if t.history != nil {
			if err := t.history.RecordTransition(ctx, *tr); err != nil {
				t.logger.Warn("recording status transition failed", "address", address, "error", err)
			}
		}
		t.notify(ctx, *tr, d)
	}
	return out, nil
}

func (t *Tracker) sweepOne(ctx context.Context, address string, now time.Time) (*Transition, *Device, error) {
	mu := t.stripe(address)
	mu.Lock()
	defer mu.Unlock()

	t.cacheMu.RLock()
	current := t.cache[address]
	t.cacheMu.RUnlock()
	if current == nil || current.Ignored {
		return nil, nil, nil
	}

	next := t.statusFor(current, now)
	if next == current.Status {
		return nil, nil, nil
	}

	if err := t.repo.UpdateStatus(ctx, address, next, now); err != nil {
		t.storeErrors.Add(1)
		return nil, nil, fmt.Errorf("%w: updating status of %s: %w", ErrStoreUnavailable, address, err)
	}

	d := current.DeepCopy()
	d.Status = next
	d.UpdatedAt = now

	t.cacheMu.Lock()
	t.cache[address] = d
	t.cacheMu.Unlock()

	return &Transition{Address: address, From: current.Status, To: next, At: now}, d.DeepCopy(), nil
}

// statusFor never returns StatusNew.
func (t *Tracker) statusFor(d *Device, now time.Time) Status {
	age := now.Sub(d.LastSeen)
	switch {
	case age > t.cfg.OldAfter():
		return StatusOld
	case age > t.cfg.OfflineAfter():
		return StatusOffline
	default:
		return StatusOnline
	}
}

// DueForRefresh selects devices for an active scan: LE devices lacking a
// name or services first, then classic devices without a name. Only devices
// seen within the offline threshold and not dispatched within interval are
// returned.
func (t *Tracker) DueForRefresh(now time.Time, interval time.Duration) []RefreshTarget {
	type candidate struct {
		target   RefreshTarget
		priority int
		lastSeen time.Time
	}

	t.refreshMu.Lock()
	refreshed := make(map[string]time.Time, len(t.refreshed))
	for k, v := range t.refreshed {
		refreshed[k] = v
	}
	t.refreshMu.Unlock()

	t.cacheMu.RLock()
	var candidates []candidate
	for _, d := range t.cache {
		if d.Ignored || now.Sub(d.LastSeen) > t.cfg.OfflineAfter() {
			continue
		}
		if last, ok := refreshed[d.Address]; ok && now.Sub(last) < interval {
			continue
		}
		switch {
		case d.LE && (d.Name == "" || len(d.ServiceUUIDs) == 0):
			candidates = append(candidates, candidate{RefreshTarget{d.Address, RefreshLE}, 0, d.LastSeen})
		case d.Classic && d.Name == "":
			candidates = append(candidates, candidate{RefreshTarget{d.Address, RefreshClassic}, 1, d.LastSeen})
		}
	}
	t.cacheMu.RUnlock()

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		if c := b.lastSeen.Compare(a.lastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.target.Address, b.target.Address)
	})

	out := make([]RefreshTarget, len(candidates))
	for i, c := range candidates {
		out[i] = c.target
	}
	return out
}

// MarkRefreshed records that an active scan was dispatched for address.
// It is kept in memory only.
func (t *Tracker) MarkRefreshed(address string, at time.Time) {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()
	t.refreshed[address] = at
}

// Get returns a copy of the device with the given canonical address.
func (t *Tracker) Get(address string) (*Device, error) {
	t.cacheMu.RLock()
	defer t.cacheMu.RUnlock()

	d, ok := t.cache[address]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// Snapshot returns copies of every device, most recently seen first.
func (t *Tracker) Snapshot() []Device {
	t.cacheMu.RLock()
	devices := make([]Device, 0, len(t.cache))
	for _, d := range t.cache {
		devices = append(devices, *d.DeepCopy())
	}
	t.cacheMu.RUnlock()

	slices.SortFunc(devices, func(a, b Device) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	return devices
}

// Stats returns tracker statistics for monitoring.
type Stats struct {
	Devices     int               `json:"devices"`
	ByStatus    map[Status]int    `json:"by_status"`
	ByMode      map[Mode]int      `json:"by_mode"`
	Observed    uint64            `json:"observed"`
	Created     uint64            `json:"created"`
	NoAddress   uint64            `json:"no_address"`
	Filtered    map[string]uint64 `json:"filtered"`
	Transitions uint64            `json:"transitions"`
	StoreErrors uint64            `json:"store_errors"`
}

// Stats returns current tracker statistics.
func (t *Tracker) Stats() Stats {
	stats := Stats{
		ByStatus:    make(map[Status]int),
		ByMode:      make(map[Mode]int),
		Filtered:    make(map[string]uint64),
		Observed:    t.observed.Load(),
		Created:     t.created.Load(),
		NoAddress:   t.noAddress.Load(),
		Transitions: t.transitions.Load(),
		StoreErrors: t.storeErrors.Load(),
	}

	t.cacheMu.RLock()
	stats.Devices = len(t.cache)
	for _, d := range t.cache {
		stats.ByStatus[d.Status]++
		stats.ByMode[d.Mode()]++
	}
	t.cacheMu.RUnlock()

	t.filteredMu.Lock()
	for k, v := range t.filtered {
		stats.Filtered[k] = v
	}
	t.filteredMu.Unlock()

	return stats
}

func (t *Tracker) stripe(address string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(address)) //nolint:errcheck // hash writes never fail
	return &t.stripes[h.Sum32()%lockStripes]
}

func (t *Tracker) countFiltered(reason string) {
	t.filteredMu.Lock()
	t.filtered[reason]++
	t.filteredMu.Unlock()
}

func (t *Tracker) notify(ctx context.Context, tr Transition, d *Device) {
	t.hooksMu.RLock()
	defer t.hooksMu.RUnlock()
	for _, n := range t.notifiers {
		n.NotifyStatus(ctx, tr, d.DeepCopy())
	}
}

func (t *Tracker) emitSignal(s Signal) {
	t.hooksMu.RLock()
	defer t.hooksMu.RUnlock()
	for _, o := range t.observers {
		o.ObserveSignal(s)
	}
}
