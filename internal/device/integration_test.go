package device_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/database"
	_ "github.com/nerrad567/blue-hydra/migrations"
)

// setupIntegrationDB opens an in-memory catalog with the production
// migrations applied.
func setupIntegrationDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func ptr(v int) *int { return &v }

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := device.NewSQLiteRepository(db.DB)
	ctx := context.Background()

	in := &device.Device{
		Address:       "00:1B:63:01:02:03",
		AddressType:   btmon.AddressPublic,
		Name:          "Phone",
		Vendor:        "Apple, Inc.",
		Company:       "Apple, Inc. (76)",
		ClassOfDevice: "0x5a020c",
		MajorClass:    "Phone (cellular, cordless, payphone, modem)",
		MinorClass:    "Smart phone",
		LEFlags:       []string{"BR/EDR Not Supported"},
		ServiceUUIDs:  []string{"Audio Source (0x110a)", "PnP Information (0x1200)"},
		ProximityUUID: "f7826da6-4fa2-4e98-8024-bc5b71e0893e",
		Major:         "1",
		Minor:         "2",
		Classic:       true,
		LE:            true,
		LastRSSI:      ptr(-60),
		LastTxPower:   ptr(4),
		Range:         &device.RangeEstimate{Meters: 63.1, Bucket: device.BucketFar},
		FirstSeen:     base,
		LastSeen:      base.Add(time.Minute),
		Status:        device.StatusNew,
	}
	if err := repo.Upsert(ctx, in); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, in.Address)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != in.Name || got.AddressType != in.AddressType || got.MinorClass != in.MinorClass {
		t.Errorf("scalars = %+v", got)
	}
	if !slices.Equal(got.ServiceUUIDs, in.ServiceUUIDs) || !slices.Equal(got.LEFlags, in.LEFlags) {
		t.Errorf("sets = %v / %v", got.ServiceUUIDs, got.LEFlags)
	}
	if *got.LastRSSI != -60 || *got.LastTxPower != 4 {
		t.Errorf("signal = %d / %d", *got.LastRSSI, *got.LastTxPower)
	}
	if got.Range == nil || *got.Range != *in.Range {
		t.Errorf("Range = %+v", got.Range)
	}
	if !got.FirstSeen.Equal(in.FirstSeen) || !got.LastSeen.Equal(in.LastSeen) {
		t.Errorf("times = %v / %v", got.FirstSeen, got.LastSeen)
	}
	if !got.Classic || !got.LE || got.Status != device.StatusNew {
		t.Errorf("flags/status = %v %v %q", got.Classic, got.LE, got.Status)
	}
}

func TestSQLiteRepository_NullableColumns(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := device.NewSQLiteRepository(db.DB)
	ctx := context.Background()

	in := &device.Device{Address: "AA:BB:CC:DD:EE:FF", FirstSeen: base, LastSeen: base, Status: device.StatusNew}
	if err := repo.Upsert(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, in.Address)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRSSI != nil || got.LastTxPower != nil || got.Range != nil {
		t.Errorf("nullable fields set: %+v", got)
	}
	if got.ServiceUUIDs == nil || len(got.ServiceUUIDs) != 0 {
		t.Errorf("ServiceUUIDs = %#v, want empty slice", got.ServiceUUIDs)
	}
}

func TestSQLiteRepository_UpsertKeepsCreatedAt(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := device.NewSQLiteRepository(db.DB)
	ctx := context.Background()

	d := &device.Device{Address: "AA:BB:CC:DD:EE:FF", FirstSeen: base, LastSeen: base, Status: device.StatusNew, CreatedAt: base, UpdatedAt: base}
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatal(err)
	}

	d.CreatedAt = base.Add(time.Hour)
	d.UpdatedAt = base.Add(time.Hour)
	d.LastSeen = base.Add(time.Hour)
	d.Name = "renamed"
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.Get(ctx, d.Address)
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
	if got.Name != "renamed" || !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("update not applied: %+v", got)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("List() = %d devices, %v", len(all), err)
	}
}

func TestSQLiteRepository_Errors(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := device.NewSQLiteRepository(db.DB)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "AA:BB:CC:DD:EE:FF"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.UpdateStatus(ctx, "AA:BB:CC:DD:EE:FF", device.StatusOnline, base); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.UpdateStatus(ctx, "AA:BB:CC:DD:EE:FF", "gone", base); !errors.Is(err, device.ErrInvalidStatus) {
		t.Errorf("UpdateStatus() error = %v, want ErrInvalidStatus", err)
	}

	bad := []*device.Device{
		{Address: "aa:bb:cc:dd:ee:ff", FirstSeen: base, LastSeen: base, Status: device.StatusNew},
		{Address: "AA:BB:CC:DD:EE:FF", FirstSeen: base, LastSeen: base, Status: "unknown"},
		{Address: "AA:BB:CC:DD:EE:FF", Status: device.StatusNew},
		{Address: "AA:BB:CC:DD:EE:FF", FirstSeen: base, LastSeen: base.Add(-time.Second), Status: device.StatusNew},
	}
	for i, d := range bad {
		if err := repo.Upsert(ctx, d); err == nil {
			t.Errorf("Upsert(bad[%d]) succeeded", i)
		}
	}
}

func TestSyncVersionStore(t *testing.T) {
	db := setupIntegrationDB(t)
	store := device.NewSyncVersionStore(db.DB)
	ctx := context.Background()

	v, err := store.Current(ctx)
	if err != nil || v != 0 {
		t.Fatalf("Current() = %d, %v; want 0", v, err)
	}
	for want := int64(1); want <= 3; want++ {
		got, err := store.Bump(ctx)
		if err != nil {
			t.Fatalf("Bump() error = %v", err)
		}
		if got != want {
			t.Errorf("Bump() = %d, want %d", got, want)
		}
	}
}

func TestSyncVersionStore_Unavailable(t *testing.T) {
	db := setupIntegrationDB(t)
	store := device.NewSyncVersionStore(db.DB)
	db.Close()

	if _, err := store.Bump(context.Background()); !errors.Is(err, device.ErrStoreUnavailable) {
		t.Errorf("Bump() on closed db error = %v, want ErrStoreUnavailable", err)
	}
}

func TestStatusHistory(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := device.NewSQLiteRepository(db.DB)
	history := device.NewSQLiteStatusHistoryRepository(db.DB)
	ctx := context.Background()

	tracker := device.NewTracker(repo, device.TrackerConfig{ScanInterval: time.Minute})
	tracker.SetHistory(history)

	rec := btmon.AttributeRecord{Address: "AA:BB:CC:DD:EE:FF", Name: "Test Device", RSSI: ptr(-60), Classic: true}
	if _, err := tracker.Observe(ctx, rec, base); err != nil {
		t.Fatal(err)
	}
	for _, at := range []time.Time{base, base.Add(5 * time.Minute), base.Add(3 * time.Hour)} {
		if _, err := tracker.Sweep(ctx, at); err != nil {
			t.Fatalf("Sweep(%v) error = %v", at, err)
		}
	}

	entries, err := history.GetHistory(ctx, "AA:BB:CC:DD:EE:FF", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	want := []device.Status{device.StatusOld, device.StatusOffline, device.StatusOnline}
	if len(entries) != len(want) {
		t.Fatalf("entries = %+v", entries)
	}
	for i, e := range entries {
		if e.To != want[i] {
			t.Errorf("entries[%d].To = %q, want %q", i, e.To, want[i])
		}
	}
	if entries[2].From != device.StatusNew {
		t.Errorf("oldest From = %q, want new", entries[2].From)
	}

	n, err := history.PruneHistory(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PruneHistory() removed %d, want 3 (fixture times are in the past)", n)
	}

	if err := history.RecordTransition(ctx, device.Transition{Address: "AA:BB:CC:DD:EE:FF", From: "x", To: device.StatusOld}); err == nil {
		t.Error("RecordTransition() accepted an invalid status")
	}
}

func TestTracker_SQLiteEndToEnd(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := device.NewSQLiteRepository(db.DB)
	ctx := context.Background()

	tracker := device.NewTracker(repo, device.TrackerConfig{})
	if _, err := tracker.Observe(ctx, btmon.AttributeRecord{Address: "AA:BB:CC:DD:EE:FF", Name: "Test Device", RSSI: ptr(-60), Classic: true}, base); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Observe(ctx, btmon.AttributeRecord{Address: "AA:BB:CC:DD:EE:FF", RSSI: ptr(-40), ServiceUUIDs: []string{"Audio Sink (0x110b)"}}, base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Sweep(ctx, base.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}

	// A fresh tracker sees the same catalog.
	reloaded := device.NewTracker(repo, device.TrackerConfig{})
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	d, err := reloaded.Get("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Test Device" || *d.LastRSSI != -40 || d.Status != device.StatusOnline || len(d.ServiceUUIDs) != 1 {
		t.Errorf("reloaded device = %+v", d)
	}
	if !d.LastSeen.Equal(base.Add(time.Second)) {
		t.Errorf("LastSeen = %v", d.LastSeen)
	}
}
