// ABOUTME: Application configuration stored at XDG paths with environment overrides
// ABOUTME: Selects local and cloud backends, quota settings, timeouts, and log level
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Local backends.
const (
	LocalBadger = "badger"
	LocalSQLite = "sqlite"
)

// Cloud backends.
const (
	CloudNone   = "none"
	CloudRedis  = "redis"
	CloudDynamo = "dynamodb"
)

// Config holds every tunable the CLI and MCP server read at startup.
type Config struct {
	LocalBackend string `json:"local_backend"`
	DataDir      string `json:"data_dir"`

	CloudBackend   string `json:"cloud_backend"`
	RedisURL       string `json:"redis_url,omitempty"`
	DynamoTable    string `json:"dynamo_table,omitempty"`
	DynamoRegion   string `json:"dynamo_region,omitempty"`
	DynamoEndpoint string `json:"dynamo_endpoint,omitempty"`

	// WeeklyLimit is the fallback quota when the cloud has none configured.
	WeeklyLimit int `json:"weekly_limit"`
	// QuotaTimezone is an IANA zone name; empty means the process's local zone.
	QuotaTimezone string `json:"quota_timezone,omitempty"`

	ReconcileTimeout string `json:"reconcile_timeout"`
	MirrorTimeout    string `json:"mirror_timeout"`

	LogLevel string `json:"log_level"`
}

// Dir returns the XDG data directory for stakemap.
func Dir() string {
	return filepath.Join(xdg.DataHome, "stakemap")
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// Default returns a local-only configuration.
func Default() *Config {
	return &Config{
		LocalBackend:     LocalBadger,
		DataDir:          Dir(),
		CloudBackend:     CloudNone,
		WeeklyLimit:      10,
		ReconcileTimeout: "30s",
		MirrorTimeout:    "15s",
		LogLevel:         "info",
	}
}

// LoadDotEnv loads .env from the working directory when one exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads the config at path, or Path() when path is empty. A missing
// file yields defaults. Environment variables override file values:
//   - STAKEMAP_LOCAL_BACKEND
//   - STAKEMAP_DATA_DIR
//   - STAKEMAP_CLOUD_BACKEND
//   - STAKEMAP_REDIS_URL
//   - STAKEMAP_DYNAMO_TABLE, STAKEMAP_DYNAMO_REGION, STAKEMAP_DYNAMO_ENDPOINT
//   - STAKEMAP_WEEKLY_LIMIT
//   - STAKEMAP_QUOTA_TZ
//   - STAKEMAP_RECONCILE_TIMEOUT, STAKEMAP_MIRROR_TIMEOUT
//   - STAKEMAP_LOG_LEVEL
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer func() { _ = f.Close() }()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"STAKEMAP_LOCAL_BACKEND":     &cfg.LocalBackend,
		"STAKEMAP_DATA_DIR":          &cfg.DataDir,
		"STAKEMAP_CLOUD_BACKEND":     &cfg.CloudBackend,
		"STAKEMAP_REDIS_URL":         &cfg.RedisURL,
		"STAKEMAP_DYNAMO_TABLE":      &cfg.DynamoTable,
		"STAKEMAP_DYNAMO_REGION":     &cfg.DynamoRegion,
		"STAKEMAP_DYNAMO_ENDPOINT":   &cfg.DynamoEndpoint,
		"STAKEMAP_QUOTA_TZ":          &cfg.QuotaTimezone,
		"STAKEMAP_RECONCILE_TIMEOUT": &cfg.ReconcileTimeout,
		"STAKEMAP_MIRROR_TIMEOUT":    &cfg.MirrorTimeout,
		"STAKEMAP_LOG_LEVEL":         &cfg.LogLevel,
	}
	for key, field := range strs {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("STAKEMAP_WEEKLY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STAKEMAP_WEEKLY_LIMIT %q: %w", v, err)
		}
		cfg.WeeklyLimit = n
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.LocalBackend == "" {
		c.LocalBackend = d.LocalBackend
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.CloudBackend == "" {
		c.CloudBackend = d.CloudBackend
	}
	if c.WeeklyLimit == 0 {
		c.WeeklyLimit = d.WeeklyLimit
	}
	if c.ReconcileTimeout == "" {
		c.ReconcileTimeout = d.ReconcileTimeout
	}
	if c.MirrorTimeout == "" {
		c.MirrorTimeout = d.MirrorTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Save writes the config to path, or Path() when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.LocalBackend {
	case LocalBadger, LocalSQLite:
	default:
		return fmt.Errorf("unknown local backend %q", c.LocalBackend)
	}

	switch c.CloudBackend {
	case CloudNone:
	case CloudRedis:
		if c.RedisURL == "" {
			return errors.New("redis cloud backend requires redis_url")
		}
	case CloudDynamo:
		if c.DynamoTable == "" {
			return errors.New("dynamodb cloud backend requires dynamo_table")
		}
	default:
		return fmt.Errorf("unknown cloud backend %q", c.CloudBackend)
	}

	if c.WeeklyLimit < 0 {
		return fmt.Errorf("weekly_limit must not be negative, got %d", c.WeeklyLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := parseTimeout("reconcile_timeout", c.ReconcileTimeout); err != nil {
		return err
	}
	if _, err := parseTimeout("mirror_timeout", c.MirrorTimeout); err != nil {
		return err
	}
	return nil
}

// HasCloud reports whether a cloud backend is configured.
func (c *Config) HasCloud() bool {
	return c.CloudBackend != "" && c.CloudBackend != CloudNone
}

// Location resolves QuotaTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.QuotaTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid quota_timezone %q: %w", c.QuotaTimezone, err)
	}
	return loc, nil
}

// Timeouts returns the parsed reconcile and mirror timeouts.
func (c *Config) Timeouts() (reconcile, mirror time.Duration, err error) {
	if reconcile, err = parseTimeout("reconcile_timeout", c.ReconcileTimeout); err != nil {
		return 0, 0, err
	}
	if mirror, err = parseTimeout("mirror_timeout", c.MirrorTimeout); err != nil {
		return 0, 0, err
	}
	return reconcile, mirror, nil
}

func parseTimeout(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return d, nil
}
