package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the system-wide configuration file location.
const DefaultPath = "/etc/blue_hydra/blue_hydra.yml"

// MinInfoScanRate is the lowest non-zero active scan cadence in seconds.
// Lower values are raised to this minimum; 0 disables active scanning.
const MinInfoScanRate = 45

// Filter modes for the inclusive filter lists.
const (
	FilterModeDisabled = "disabled"
	FilterModeEnabled  = "enabled"
)

// Config is the root configuration structure for the Blue Hydra sensor.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	Bluetooth   BluetoothConfig   `yaml:"bluetooth"`
	Scan        ScanConfig        `yaml:"scan"`
	Filters     FilterConfig      `yaml:"filters"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Replay      ReplayConfig      `yaml:"replay"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SensorConfig identifies this sensor to the telemetry sink.
type SensorConfig struct {
	ID string `yaml:"id"`
}

// BluetoothConfig describes the local controller and the tools used to drive it.
type BluetoothConfig struct {
	// Device is the HCI interface name (e.g. "hci0").
	Device string `yaml:"bt_device"`

	// MonitorBinary is the trace tool producing the text dump. Default: "btmon".
	MonitorBinary string `yaml:"monitor_binary"`

	// MonitorArgs overrides the monitor arguments. When empty the scheduler
	// uses "-T -i <bt_device>".
	MonitorArgs []string `yaml:"monitor_args"`

	// HciconfigBinary enumerates the local adapter address.
	HciconfigBinary string `yaml:"hciconfig_binary"`

	// HcitoolBinary issues active info scans.
	HcitoolBinary string `yaml:"hcitool_binary"`
}

// ScanConfig controls the scheduler cadences and status thresholds.
type ScanConfig struct {
	// InfoScanRate is the active scan cadence in seconds (min 45, 0 = disabled).
	InfoScanRate int `yaml:"info_scan_rate"`

	// AggressiveRSSI forwards every RSSI observation to the telemetry sink.
	AggressiveRSSI bool `yaml:"aggressive_rssi"`

	// StatusInterval is the sweep cadence in seconds and the base unit of the
	// offline/old thresholds.
	StatusInterval int `yaml:"status_interval"`

	// OfflineMultiple and OldMultiple scale StatusInterval into thresholds.
	OfflineMultiple int `yaml:"offline_multiple"`
	OldMultiple     int `yaml:"old_multiple"`

	// Workers bounds concurrent active scan commands.
	Workers int `yaml:"workers"`

	// MaxTries is the number of attempts per active scan before giving up.
	MaxTries int `yaml:"max_tries"`

	// RetryInitialDelay is the first backoff delay in seconds.
	RetryInitialDelay int `yaml:"retry_initial_delay"`

	// CommandTimeout bounds a single active scan command in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// CommandGrace is how long in-flight commands may run after shutdown, in seconds.
	CommandGrace int `yaml:"command_grace"`

	// RestartWindow is the window in seconds in which a second monitor
	// failure is fatal.
	RestartWindow int `yaml:"restart_window"`

	// ResyncSchedule is a cron expression for the full catalog resync.
	ResyncSchedule string `yaml:"resync_schedule"`
}

// FilterConfig holds the address and proximity filter lists.
type FilterConfig struct {
	IncludeMode string   `yaml:"ui_inc_filter_mode"`
	IncludeMAC  []string `yaml:"ui_inc_filter_mac"`
	IncludeProx []string `yaml:"ui_inc_filter_prox"`
	ExcludeMAC  []string `yaml:"ui_exc_filter_mac"`
	ExcludeProx []string `yaml:"ui_exc_filter_prox"`
	IgnoreMAC   []string `yaml:"ignore_mac"`
}

// DiagnosticsConfig contains the diagnostic mirroring and chunker limits.
type DiagnosticsConfig struct {
	// ChunkerDebug mirrors every reconstructed chunk to BtmonLog.
	ChunkerDebug bool `yaml:"chunker_debug"`

	// BtmonLog is the chunk mirror file. Empty disables it.
	BtmonLog string `yaml:"btmon_log"`

	// BtmonRawLog receives every raw monitor line. Empty disables it.
	BtmonRawLog string `yaml:"btmon_rawlog"`

	// RSSILog writes every signal observation to InfluxDB when enabled there.
	RSSILog bool `yaml:"rssi_log"`

	MaxChunkLines int `yaml:"max_chunk_lines"`
	MaxLineLength int `yaml:"max_line_length"`
}

// ReplayConfig switches the line source to a captured trace file.
type ReplayConfig struct {
	File string `yaml:"file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// FastWrites trades durability for speed (synchronous=OFF, journal in memory).
	FastWrites bool `yaml:"fast_writes"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the catalog API / signal stream settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	WS       WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket settings for the signal stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Normalisation and validation
//
// Environment variables follow the pattern: BLUEHYDRA_SECTION_KEY
// For example: BLUEHYDRA_DATABASE_PATH, BLUEHYDRA_BT_DEVICE
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the sensor defaults.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{ID: "blue-hydra"},
		Bluetooth: BluetoothConfig{
			Device:          "hci0",
			MonitorBinary:   "btmon",
			HciconfigBinary: "hciconfig",
			HcitoolBinary:   "hcitool",
		},
		Scan: ScanConfig{
			InfoScanRate:      240,
			StatusInterval:    60,
			OfflineMultiple:   3,
			OldMultiple:       120,
			Workers:           2,
			MaxTries:          3,
			RetryInitialDelay: 2,
			CommandTimeout:    30,
			CommandGrace:      5,
			RestartWindow:     60,
			ResyncSchedule:    "@daily",
		},
		Filters: FilterConfig{
			IncludeMode: FilterModeDisabled,
		},
		Diagnostics: DiagnosticsConfig{
			MaxChunkLines: 512,
			MaxLineLength: 4096,
		},
		Database: DatabaseConfig{
			Path:        "/etc/blue_hydra/blue_hydra.db",
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "blue-hydra",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "bluetooth",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 1124,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WS: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLUEHYDRA_BT_DEVICE"); v != "" {
		cfg.Bluetooth.Device = v
	}
	if v := os.Getenv("BLUEHYDRA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("BLUEHYDRA_REPLAY_FILE"); v != "" {
		cfg.Replay.File = v
	}
	if v := os.Getenv("BLUEHYDRA_INFO_SCAN_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.InfoScanRate = n
		}
	}

	// MQTT
	if v := os.Getenv("BLUEHYDRA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLUEHYDRA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLUEHYDRA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BLUEHYDRA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("BLUEHYDRA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate normalises the configuration and checks it for errors.
//
// Normalisation rules:
//   - info_scan_rate is made non-negative and raised to MinInfoScanRate unless 0
//   - MAC filter entries are upper-cased, proximity entries lower-cased
//   - an empty include mode means disabled
func (c *Config) Validate() error {
	var errs []string

	c.normalise()

	if c.Sensor.ID == "" {
		errs = append(errs, "sensor.id is required")
	}
	if c.Bluetooth.Device == "" {
		errs = append(errs, "bluetooth.bt_device is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Scan.StatusInterval < 1 {
		errs = append(errs, "scan.status_interval must be at least 1 second")
	}
	if c.Scan.OfflineMultiple < 1 {
		errs = append(errs, "scan.offline_multiple must be at least 1")
	}
	if c.Scan.OldMultiple <= c.Scan.OfflineMultiple {
		errs = append(errs, "scan.old_multiple must be greater than scan.offline_multiple")
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, "scan.workers must be at least 1")
	}
	if c.Scan.MaxTries < 1 {
		errs = append(errs, "scan.max_tries must be at least 1")
	}
	if c.Filters.IncludeMode != FilterModeDisabled && c.Filters.IncludeMode != FilterModeEnabled {
		errs = append(errs, fmt.Sprintf("filters.ui_inc_filter_mode must be %q or %q", FilterModeDisabled, FilterModeEnabled))
	}
	if c.Diagnostics.MaxChunkLines < 1 {
		errs = append(errs, "diagnostics.max_chunk_lines must be at least 1")
	}
	if c.Diagnostics.MaxLineLength < 1 {
		errs = append(errs, "diagnostics.max_line_length must be at least 1")
	}
	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) normalise() {
	rate := int(math.Abs(float64(c.Scan.InfoScanRate)))
	if rate != 0 && rate < MinInfoScanRate {
		rate = MinInfoScanRate
	}
	c.Scan.InfoScanRate = rate

	if c.Filters.IncludeMode == "" {
		c.Filters.IncludeMode = FilterModeDisabled
	}
	c.Filters.IncludeMode = strings.ToLower(c.Filters.IncludeMode)

	c.Filters.IncludeMAC = mapStrings(c.Filters.IncludeMAC, strings.ToUpper)
	c.Filters.ExcludeMAC = mapStrings(c.Filters.ExcludeMAC, strings.ToUpper)
	c.Filters.IgnoreMAC = mapStrings(c.Filters.IgnoreMAC, strings.ToUpper)
	c.Filters.IncludeProx = mapStrings(c.Filters.IncludeProx, strings.ToLower)
	c.Filters.ExcludeProx = mapStrings(c.Filters.ExcludeProx, strings.ToLower)
}

func mapStrings(in []string, fn func(string) string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, fn(s))
	}
	return out
}

// InfoScanEnabled reports whether active info scans are enabled.
func (c *Config) InfoScanEnabled() bool {
	return c.Scan.InfoScanRate > 0
}

// InfoScanInterval returns the active scan cadence as a Duration.
func (c *Config) InfoScanInterval() time.Duration {
	return time.Duration(c.Scan.InfoScanRate) * time.Second
}

// StatusInterval returns the sweep cadence as a Duration.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Scan.StatusInterval) * time.Second
}

// MonitorArgs returns the monitor arguments, defaulting to timestamps on the
// configured interface.
func (c *Config) MonitorArgs() []string {
	if len(c.Bluetooth.MonitorArgs) > 0 {
		return c.Bluetooth.MonitorArgs
	}
	return []string{"-T", "-i", c.Bluetooth.Device}
}
