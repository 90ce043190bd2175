package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// timeLayout is how timestamps are stored. Fixed-width so that lexical
// order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the interface for catalog persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a device by canonical address.
	// Returns ErrDeviceNotFound if the device does not exist.
	Get(ctx context.Context, address string) (*Device, error)

	// List retrieves every device.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts the device or replaces the stored row for its address.
	Upsert(ctx context.Context, device *Device) error

	// UpdateStatus changes only the status of a device.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateStatus(ctx context.Context, address string, status Status, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the catalog
// migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT address, address_type, name, vendor, company, class_of_device,
		major_class, minor_class, appearance, le_flags, service_uuids,
		proximity_uuid, major, minor, classic, le, last_rssi, last_tx_power,
		range_meters, range_bucket, status, first_seen, last_seen,
		created_at, updated_at
	FROM devices`

// Get retrieves a device by canonical address.
func (r *SQLiteRepository) Get(ctx context.Context, address string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE address = ?`, address)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by address: %w", err)
	}
	return d, nil
}

// List retrieves every device ordered by address.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts or replaces a device. CreatedAt is kept from the first
// insert.
func (r *SQLiteRepository) Upsert(ctx context.Context, device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}

	flagsJSON, err := json.Marshal(nonNil(device.LEFlags))
	if err != nil {
		return fmt.Errorf("marshalling le_flags: %w", err)
	}
	uuidsJSON, err := json.Marshal(nonNil(device.ServiceUUIDs))
	if err != nil {
		return fmt.Errorf("marshalling service_uuids: %w", err)
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = now
	}

	var rangeMeters sql.NullFloat64
	var rangeBucket string
	if device.Range != nil {
		rangeMeters = sql.NullFloat64{Float64: device.Range.Meters, Valid: true}
		rangeBucket = device.Range.Bucket
	}

	query := `
		INSERT INTO devices (
			address, address_type, name, vendor, company, class_of_device,
			major_class, minor_class, appearance, le_flags, service_uuids,
			proximity_uuid, major, minor, classic, le, last_rssi, last_tx_power,
			range_meters, range_bucket, status, first_seen, last_seen,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			address_type = excluded.address_type,
			name = excluded.name,
			vendor = excluded.vendor,
			company = excluded.company,
			class_of_device = excluded.class_of_device,
			major_class = excluded.major_class,
			minor_class = excluded.minor_class,
			appearance = excluded.appearance,
			le_flags = excluded.le_flags,
			service_uuids = excluded.service_uuids,
			proximity_uuid = excluded.proximity_uuid,
			major = excluded.major,
			minor = excluded.minor,
			classic = excluded.classic,
			le = excluded.le,
			last_rssi = excluded.last_rssi,
			last_tx_power = excluded.last_tx_power,
			range_meters = excluded.range_meters,
			range_bucket = excluded.range_bucket,
			status = excluded.status,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		device.Address,
		string(device.AddressType),
		device.Name,
		device.Vendor,
		device.Company,
		device.ClassOfDevice,
		device.MajorClass,
		device.MinorClass,
		device.Appearance,
		string(flagsJSON),
		string(uuidsJSON),
		device.ProximityUUID,
		device.Major,
		device.Minor,
		boolToInt(device.Classic),
		boolToInt(device.LE),
		nullableInt(device.LastRSSI),
		nullableInt(device.LastTxPower),
		rangeMeters,
		rangeBucket,
		string(device.Status),
		formatTime(device.FirstSeen),
		formatTime(device.LastSeen),
		formatTime(device.CreatedAt),
		formatTime(device.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// UpdateStatus changes only the status column.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, address string, status Status, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, updated_at = ? WHERE address = ?`,
		string(status), formatTime(at), address,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var addressType, status string
	var flagsJSON, uuidsJSON string
	var classic, le int
	var rssi, txPower sql.NullInt64
	var rangeMeters sql.NullFloat64
	var rangeBucket string
	var firstSeen, lastSeen, createdAt, updatedAt string

	err := scanner.Scan(
		&d.Address,
		&addressType,
		&d.Name,
		&d.Vendor,
		&d.Company,
		&d.ClassOfDevice,
		&d.MajorClass,
		&d.MinorClass,
		&d.Appearance,
		&flagsJSON,
		&uuidsJSON,
		&d.ProximityUUID,
		&d.Major,
		&d.Minor,
		&classic,
		&le,
		&rssi,
		&txPower,
		&rangeMeters,
		&rangeBucket,
		&status,
		&firstSeen,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.AddressType = btmon.AddressType(addressType)
	d.Status = Status(status)
	d.Classic = classic != 0
	d.LE = le != 0

	if err := json.Unmarshal([]byte(flagsJSON), &d.LEFlags); err != nil {
		return nil, fmt.Errorf("unmarshalling le_flags: %w", err)
	}
	if err := json.Unmarshal([]byte(uuidsJSON), &d.ServiceUUIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling service_uuids: %w", err)
	}

	if rssi.Valid {
		v := int(rssi.Int64)
		d.LastRSSI = &v
	}
	if txPower.Valid {
		v := int(txPower.Int64)
		d.LastTxPower = &v
	}
	if rangeMeters.Valid {
		d.Range = &RangeEstimate{Meters: rangeMeters.Float64, Bucket: rangeBucket}
	}

	for _, ts := range []struct {
		dst *time.Time
		src string
		col string
	}{
		{&d.FirstSeen, firstSeen, "first_seen"},
		{&d.LastSeen, lastSeen, "last_seen"},
		{&d.CreatedAt, createdAt, "created_at"},
		{&d.UpdatedAt, updatedAt, "updated_at"},
	} {
		t, err := parseTime(ts.src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ts.col, err)
		}
		*ts.dst = t
	}

	return &d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the storage layout and plain RFC 3339.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
