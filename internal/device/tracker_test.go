package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device
	upserts int
	// For testing error paths
	listErr   error
	upsertErr error
	statusErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		devices: make(map[string]*Device),
	}
}

func (m *MockRepository) Get(_ context.Context, address string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[address]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *MockRepository) Upsert(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}
	if err := ValidateDevice(d); err != nil {
		return err
	}
	m.upserts++
	m.devices[d.Address] = d.DeepCopy()
	return nil
}

func (m *MockRepository) UpdateStatus(_ context.Context, address string, status Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return m.statusErr
	}
	d, ok := m.devices[address]
	if !ok {
		return ErrDeviceNotFound
	}
	d.Status = status
	d.UpdatedAt = at
	return nil
}

func (m *MockRepository) stored(address string) *Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices[address].DeepCopy()
}

type recordingNotifier struct {
	mu          sync.Mutex
	transitions []Transition
}

func (n *recordingNotifier) NotifyStatus(_ context.Context, t Transition, _ *Device) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, t)
}

type recordingObserver struct {
	mu      sync.Mutex
	signals []Signal
}

func (o *recordingObserver) ObserveSignal(s Signal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals = append(o.signals, s)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func inquiryRecord(addr, name string, rssi int) btmon.AttributeRecord {
	return btmon.AttributeRecord{
		Address: addr,
		Name:    name,
		Vendor:  btmon.VendorUnknown,
		RSSI:    intPtr(rssi),
		Classic: true,
		Event:   "Extended Inquiry Result",
	}
}

func newTestTracker(t *testing.T, cfg TrackerConfig) (*Tracker, *MockRepository) {
	t.Helper()
	repo := NewMockRepository()
	return NewTracker(repo, cfg), repo
}

func TestTracker_SingleInquiry(t *testing.T) {
	tr, repo := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()

	addr, err := tr.Observe(ctx, inquiryRecord("AA:BB:CC:DD:EE:FF", "Test Device", -60), t0)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if addr != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("Observe() = %q", addr)
	}

	devices := tr.Snapshot()
	if len(devices) != 1 {
		t.Fatalf("catalog size = %d, want 1", len(devices))
	}
	d := devices[0]
	if d.Name != "Test Device" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.LastRSSI == nil || *d.LastRSSI != -60 {
		t.Errorf("LastRSSI = %v, want -60", d.LastRSSI)
	}
	if d.Status != StatusNew {
		t.Errorf("Status = %q, want new", d.Status)
	}
	if !d.FirstSeen.Equal(t0) || !d.LastSeen.Equal(t0) {
		t.Errorf("FirstSeen/LastSeen = %v/%v, want %v", d.FirstSeen, d.LastSeen, t0)
	}
	if d.Mode() != ModeClassic {
		t.Errorf("Mode() = %q, want classic", d.Mode())
	}
	if repo.stored(addr) == nil {
		t.Error("device was not persisted")
	}
}

func TestTracker_MergeKeepsName(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()

	if _, err := tr.Observe(ctx, inquiryRecord("AA:BB:CC:DD:EE:FF", "Test Device", -60), t0); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Observe(ctx, inquiryRecord("AA:BB:CC:DD:EE:FF", "", -40), t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	d, err := tr.Get("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Name != "Test Device" {
		t.Errorf("Name = %q, want original name kept", d.Name)
	}
	if *d.LastRSSI != -40 {
		t.Errorf("LastRSSI = %d, want -40", *d.LastRSSI)
	}
	if !d.LastSeen.Equal(t0.Add(time.Second)) {
		t.Errorf("LastSeen = %v", d.LastSeen)
	}
}

func TestTracker_EmptyRecord(t *testing.T) {
	tr, repo := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()

	for _, rec := range []btmon.AttributeRecord{
		{},
		{RSSI: intPtr(-50), LE: true},
		{Address: "not-an-address"},
	} {
		if _, err := tr.Observe(ctx, rec, t0); !errors.Is(err, ErrNoAddress) {
			t.Errorf("Observe(%+v) error = %v, want ErrNoAddress", rec, err)
		}
	}

	if repo.upserts != 0 {
		t.Errorf("upserts = %d, want 0", repo.upserts)
	}
	transitions, err := tr.Sweep(ctx, t0)
	if err != nil || len(transitions) != 0 {
		t.Errorf("Sweep() = %v, %v; want no transitions", transitions, err)
	}
	if got := tr.Stats().NoAddress; got != 3 {
		t.Errorf("Stats().NoAddress = %d, want 3", got)
	}
}

func TestTracker_ExcludedDeviceUntouched(t *testing.T) {
	repo := NewMockRepository()
	existing := newDevice("AA:BB:CC:DD:EE:FF", t0)
	existing.Name = "Before"
	repo.devices[existing.Address] = existing

	tr := NewTracker(repo, TrackerConfig{Filter: FilterConfig{ExcludeMAC: []string{"aa:bb:cc:dd:ee:ff"}}})
	ctx := context.Background()
	if err := tr.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err := tr.Observe(ctx, inquiryRecord("AA:BB:CC:DD:EE:FF", "After", -30), t0.Add(time.Hour))
	if !errors.Is(err, ErrFiltered) {
		t.Fatalf("Observe() error = %v, want ErrFiltered", err)
	}

	d, _ := tr.Get("AA:BB:CC:DD:EE:FF")
	if !d.LastSeen.Equal(t0) || d.Name != "Before" {
		t.Errorf("excluded device changed: LastSeen=%v Name=%q", d.LastSeen, d.Name)
	}
	if repo.upserts != 0 {
		t.Errorf("upserts = %d, want 0", repo.upserts)
	}
	if got := tr.Stats().Filtered[FilterExcludedMAC]; got != 1 {
		t.Errorf("Filtered[excluded_mac] = %d, want 1", got)
	}
}

func TestTracker_Idempotence(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()
	rec := btmon.AttributeRecord{
		Address:      "00:1B:63:01:02:03",
		AddressType:  btmon.AddressPublic,
		Vendor:       "Apple, Inc.",
		ServiceUUIDs: []string{"Heart Rate (0x180d)"},
		RSSI:         intPtr(-70),
		TxPower:      intPtr(-59),
		LE:           true,
	}

	if _, err := tr.Observe(ctx, rec, t0); err != nil {
		t.Fatal(err)
	}
	once, _ := tr.Get(rec.Address)

	if _, err := tr.Observe(ctx, rec, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	twice, _ := tr.Get(rec.Address)

	once.LastSeen, once.UpdatedAt = twice.LastSeen, twice.UpdatedAt
	if !equalDevices(once, twice) {
		t.Errorf("second observation changed more than LastSeen:\n once=%+v\ntwice=%+v", once, twice)
	}
	if !twice.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastSeen = %v", twice.LastSeen)
	}
}

func TestTracker_Monotonic(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()
	addr := "00:02:5B:00:00:01"

	steps := []struct {
		at       time.Time
		services []string
	}{
		{t0.Add(10 * time.Second), []string{"Audio Source (0x110a)"}},
		{t0, []string{"PnP Information (0x1200)"}},
		{t0.Add(5 * time.Second), nil},
		{t0.Add(20 * time.Second), []string{"Audio Source (0x110a)", "Handsfree (0x111e)"}},
	}

	var prevSeen time.Time
	prevServices := 0
	for i, s := range steps {
		rec := btmon.AttributeRecord{Address: addr, ServiceUUIDs: s.services, Classic: true}
		if _, err := tr.Observe(ctx, rec, s.at); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		d, _ := tr.Get(addr)
		if d.LastSeen.Before(prevSeen) {
			t.Errorf("step %d: LastSeen went back to %v", i, d.LastSeen)
		}
		if len(d.ServiceUUIDs) < prevServices {
			t.Errorf("step %d: services shrank to %v", i, d.ServiceUUIDs)
		}
		prevSeen, prevServices = d.LastSeen, len(d.ServiceUUIDs)
	}

	d, _ := tr.Get(addr)
	if !d.FirstSeen.Equal(t0) {
		t.Errorf("FirstSeen = %v, want %v", d.FirstSeen, t0)
	}
	if len(d.ServiceUUIDs) != 3 {
		t.Errorf("ServiceUUIDs = %v, want 3 entries", d.ServiceUUIDs)
	}
}

func TestTracker_SweepStateMachine(t *testing.T) {
	cfg := TrackerConfig{ScanInterval: time.Minute, OfflineMultiple: 3, OldMultiple: 120}
	tr, repo := newTestTracker(t, cfg)
	notifier := &recordingNotifier{}
	tr.AddStatusNotifier(notifier)
	ctx := context.Background()
	addr := "AA:BB:CC:DD:EE:FF"

	if _, err := tr.Observe(ctx, inquiryRecord(addr, "x", -60), t0); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name    string
		observe bool
		at      time.Time
		want    Status
		changed bool
	}{
		{"first sweep promotes new", false, t0.Add(time.Minute), StatusOnline, true},
		{"rerun is idempotent", false, t0.Add(time.Minute), StatusOnline, false},
		{"at the offline threshold still online", false, t0.Add(3 * time.Minute), StatusOnline, false},
		{"past the offline threshold", false, t0.Add(3*time.Minute + time.Second), StatusOffline, true},
		{"past the old threshold", false, t0.Add(2*time.Hour + time.Second), StatusOld, true},
		{"old stays old", false, t0.Add(3 * time.Hour), StatusOld, false},
		{"fresh observation brings it back", true, t0.Add(4 * time.Hour), StatusOnline, true},
	}

	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			if s.observe {
				if _, err := tr.Observe(ctx, inquiryRecord(addr, "", -50), s.at); err != nil {
					t.Fatal(err)
				}
				d, _ := tr.Get(addr)
				if d.Status != StatusOld {
					t.Errorf("Observe changed status to %q", d.Status)
				}
			}
			transitions, err := tr.Sweep(ctx, s.at)
			if err != nil {
				t.Fatalf("Sweep() error = %v", err)
			}
			if (len(transitions) == 1) != s.changed {
				t.Fatalf("transitions = %+v, changed want %v", transitions, s.changed)
			}
			d, _ := tr.Get(addr)
			if d.Status != s.want {
				t.Errorf("Status = %q, want %q", d.Status, s.want)
			}
			if stored := repo.stored(addr); stored.Status != s.want {
				t.Errorf("stored Status = %q, want %q", stored.Status, s.want)
			}
		})
	}

	if len(notifier.transitions) != 4 {
		t.Errorf("notifications = %d, want 4", len(notifier.transitions))
	}
	first := notifier.transitions[0]
	if first.From != StatusNew || first.To != StatusOnline || first.Address != addr {
		t.Errorf("first transition = %+v", first)
	}
}

func TestTracker_SweepStoreError(t *testing.T) {
	tr, repo := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()
	if _, err := tr.Observe(ctx, inquiryRecord("AA:BB:CC:DD:EE:FF", "x", -60), t0); err != nil {
		t.Fatal(err)
	}

	repo.statusErr = errors.New("disk I/O error")
	_, err := tr.Sweep(ctx, t0)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Sweep() error = %v, want ErrStoreUnavailable", err)
	}
	d, _ := tr.Get("AA:BB:CC:DD:EE:FF")
	if d.Status != StatusNew {
		t.Errorf("Status = %q after failed sweep, want new", d.Status)
	}
}

func TestTracker_ObserveStoreError(t *testing.T) {
	tr, repo := newTestTracker(t, TrackerConfig{})
	repo.upsertErr = errors.New("database is locked")

	_, err := tr.Observe(context.Background(), inquiryRecord("AA:BB:CC:DD:EE:FF", "x", -60), t0)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Observe() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := tr.Get("AA:BB:CC:DD:EE:FF"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("cache updated after failed upsert: %v", err)
	}
	if tr.Stats().StoreErrors != 1 {
		t.Errorf("StoreErrors = %d", tr.Stats().StoreErrors)
	}
}

func TestTracker_LoadError(t *testing.T) {
	tr, repo := newTestTracker(t, TrackerConfig{})
	repo.listErr = errors.New("no such table: devices")
	if err := tr.Load(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Load() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestTracker_LoadMarksIgnored(t *testing.T) {
	repo := NewMockRepository()
	for _, addr := range []string{"00:11:22:33:44:55", "AA:BB:CC:DD:EE:FF"} {
		repo.devices[addr] = newDevice(addr, t0)
	}
	tr := NewTracker(repo, TrackerConfig{Filter: FilterConfig{IgnoreMAC: []string{"00:11:22:33:44:55"}}})
	ctx := context.Background()
	if err := tr.Load(ctx); err != nil {
		t.Fatal(err)
	}

	d, _ := tr.Get("00:11:22:33:44:55")
	if !d.Ignored {
		t.Error("Ignored = false for listed address")
	}

	transitions, err := tr.Sweep(ctx, t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(transitions) != 1 || transitions[0].Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("transitions = %+v, want only the non-ignored device", transitions)
	}
}

func TestTracker_Signals(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{})
	obs := &recordingObserver{}
	tr.AddSignalObserver(obs)
	ctx := context.Background()

	rec := btmon.AttributeRecord{Address: "5A:3B:11:22:33:44", AddressType: btmon.AddressRandom, RSSI: intPtr(-59), TxPower: intPtr(-59), LE: true}
	if _, err := tr.Observe(ctx, rec, t0); err != nil {
		t.Fatal(err)
	}
	rec = btmon.AttributeRecord{Address: "5A:3B:11:22:33:44", Name: "no signal"}
	if _, err := tr.Observe(ctx, rec, t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	if len(obs.signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(obs.signals))
	}
	s := obs.signals[0]
	if s.RSSI != -59 || s.Mode != ModeLE || s.Range == nil || s.Range.Bucket != BucketNear {
		t.Errorf("signal = %+v", s)
	}

	// The range survives an observation without TX power.
	d, _ := tr.Get("5A:3B:11:22:33:44")
	if d.Range == nil || d.Range.Meters != 1 {
		t.Errorf("Range = %+v, want 1m kept", d.Range)
	}
}

func TestTracker_DueForRefresh(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{ScanInterval: time.Minute})
	ctx := context.Background()
	now := t0.Add(time.Minute)

	records := []struct {
		rec btmon.AttributeRecord
		at  time.Time
	}{
		{btmon.AttributeRecord{Address: "00:00:00:00:00:01", Classic: true}, t0},
		{btmon.AttributeRecord{Address: "00:00:00:00:00:02", LE: true, Name: "named"}, t0},
		{btmon.AttributeRecord{Address: "00:00:00:00:00:03", LE: true}, t0.Add(30 * time.Second)},
		{btmon.AttributeRecord{Address: "00:00:00:00:00:04", LE: true, Name: "x", ServiceUUIDs: []string{"Battery Service (0x180f)"}}, t0},
		{btmon.AttributeRecord{Address: "00:00:00:00:00:05", Classic: true, Name: "Headset"}, t0},
		{btmon.AttributeRecord{Address: "00:00:00:00:00:06", LE: true}, t0.Add(-time.Hour)},
	}
	for _, r := range records {
		if _, err := tr.Observe(ctx, r.rec, r.at); err != nil {
			t.Fatal(err)
		}
	}

	got := tr.DueForRefresh(now, 10*time.Minute)
	want := []RefreshTarget{
		{Address: "00:00:00:00:00:03", Kind: RefreshLE},
		{Address: "00:00:00:00:00:02", Kind: RefreshLE},
		{Address: "00:00:00:00:00:01", Kind: RefreshClassic},
	}
	if len(got) != len(want) {
		t.Fatalf("DueForRefresh() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	tr.MarkRefreshed("00:00:00:00:00:03", now)
	got = tr.DueForRefresh(now.Add(time.Minute), 10*time.Minute)
	for _, g := range got {
		if g.Address == "00:00:00:00:00:03" {
			t.Error("recently refreshed device selected again")
		}
	}
	got = tr.DueForRefresh(now.Add(time.Minute), 0)
	if len(got) != 3 {
		t.Errorf("with zero interval got %d targets, want 3", len(got))
	}
}

func TestTracker_SnapshotIsCopy(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{})
	ctx := context.Background()
	rec := btmon.AttributeRecord{Address: "AA:BB:CC:DD:EE:FF", ServiceUUIDs: []string{"a"}, RSSI: intPtr(-10), Classic: true}
	if _, err := tr.Observe(ctx, rec, t0); err != nil {
		t.Fatal(err)
	}

	snap := tr.Snapshot()
	snap[0].ServiceUUIDs[0] = "mutated"
	*snap[0].LastRSSI = 0

	d, _ := tr.Get("AA:BB:CC:DD:EE:FF")
	if d.ServiceUUIDs[0] != "a" || *d.LastRSSI != -10 {
		t.Errorf("cache mutated through snapshot: %+v", d)
	}
}

func TestTracker_Stats(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{Filter: FilterConfig{IgnoreMAC: []string{"00:11:22:33:44:55"}}})
	ctx := context.Background()

	tr.Observe(ctx, inquiryRecord("AA:BB:CC:DD:EE:FF", "a", -60), t0)                                     //nolint:errcheck // counted below
	tr.Observe(ctx, btmon.AttributeRecord{Address: "5A:3B:11:22:33:44", LE: true}, t0)                  //nolint:errcheck // counted below
	tr.Observe(ctx, inquiryRecord("00:11:22:33:44:55", "local", -10), t0)                                //nolint:errcheck // counted below
	tr.Observe(ctx, btmon.AttributeRecord{Address: "AA:BB:CC:DD:EE:FF", LE: true}, t0.Add(time.Second)) //nolint:errcheck // counted below

	s := tr.Stats()
	if s.Devices != 2 || s.Created != 2 || s.Observed != 3 {
		t.Errorf("stats = %+v", s)
	}
	if s.ByMode[ModeDual] != 1 || s.ByMode[ModeLE] != 1 {
		t.Errorf("ByMode = %v", s.ByMode)
	}
	if s.ByStatus[StatusNew] != 2 {
		t.Errorf("ByStatus = %v", s.ByStatus)
	}
	if s.Filtered[FilterIgnored] != 1 {
		t.Errorf("Filtered = %v", s.Filtered)
	}
}

func TestTracker_ConcurrentObserveAndSweep(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerConfig{ScanInterval: time.Second})
	ctx := context.Background()
	addrs := []string{"00:00:00:00:00:01", "00:00:00:00:00:02", "00:00:00:00:00:03"}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			rec := btmon.AttributeRecord{Address: addrs[i%len(addrs)], RSSI: intPtr(-i % 100), LE: true}
			if _, err := tr.Observe(ctx, rec, t0.Add(time.Duration(i)*time.Second)); err != nil {
				t.Errorf("Observe() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := tr.Sweep(ctx, t0.Add(time.Duration(i*4)*time.Second)); err != nil {
				t.Errorf("Sweep() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if _, err := tr.Sweep(ctx, t0.Add(200*time.Second)); err != nil {
		t.Fatal(err)
	}
	for _, d := range tr.Snapshot() {
		if d.Status != StatusOnline {
			t.Errorf("%s status = %q, want online", d.Address, d.Status)
		}
	}
}

func TestTrackerConfig_Defaults(t *testing.T) {
	cfg := TrackerConfig{}.withDefaults()
	if cfg.OfflineAfter() != 3*time.Minute {
		t.Errorf("OfflineAfter() = %v", cfg.OfflineAfter())
	}
	if cfg.OldAfter() != 2*time.Hour {
		t.Errorf("OldAfter() = %v", cfg.OldAfter())
	}

	cfg = TrackerConfig{ScanInterval: time.Second, OfflineMultiple: 200, OldMultiple: 10}.withDefaults()
	if cfg.OldMultiple <= cfg.OfflineMultiple {
		t.Errorf("OldMultiple %d not above OfflineMultiple %d", cfg.OldMultiple, cfg.OfflineMultiple)
	}
}

func equalDevices(a, b *Device) bool {
	if a.Address != b.Address || a.Name != b.Name || a.Vendor != b.Vendor || a.Status != b.Status ||
		a.Classic != b.Classic || a.LE != b.LE || a.AddressType != b.AddressType ||
		!a.FirstSeen.Equal(b.FirstSeen) || !a.LastSeen.Equal(b.LastSeen) {
		return false
	}
	if len(a.ServiceUUIDs) != len(b.ServiceUUIDs) {
		return false
	}
	for i := range a.ServiceUUIDs {
		if a.ServiceUUIDs[i] != b.ServiceUUIDs[i] {
			return false
		}
	}
	if (a.LastRSSI == nil) != (b.LastRSSI == nil) || (a.LastRSSI != nil && *a.LastRSSI != *b.LastRSSI) {
		return false
	}
	if (a.Range == nil) != (b.Range == nil) || (a.Range != nil && *a.Range != *b.Range) {
		return false
	}
	return true
}
