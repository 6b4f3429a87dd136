package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DB
	Env     string `mapstructure:"ENV"`     // "dev" | "prod"
	Storage string `mapstructure:"STORAGE"` // "sqlite" | "memory"
	DBPath  string `mapstructure:"DB_PATH"` // e.g. "./data/janus.db"

	// Tokens
	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	// Bootstrap admin, created approved on startup when email is set.
	AdminName     string `mapstructure:"ADMIN_NAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	// Lock devices: "door-001=http://10.0.0.60,door-002=http://10.0.0.61".
	// A device without "=url" is registered but driven by the simulator.
	Devices       string        `mapstructure:"DEVICES"`
	DefaultDevice string        `mapstructure:"DEFAULT_DEVICE"`
	AckTimeout    time.Duration `mapstructure:"ACK_TIMEOUT"`

	// Face pipeline
	FaceExtractorAddr  string        `mapstructure:"FACE_EXTRACTOR_ADDR"` // empty = local pixel extractor
	FaceThreshold      float64       `mapstructure:"FACE_THRESHOLD"`
	FaceMargin         float64       `mapstructure:"FACE_MARGIN"`
	FaceMaxImageBytes  int           `mapstructure:"FACE_MAX_IMAGE_BYTES"`
	FaceExtractTimeout time.Duration `mapstructure:"FACE_EXTRACT_TIMEOUT"`

	// Heartbeat / command retention
	HeartbeatRetentionDays int `mapstructure:"HEARTBEAT_RETENTION_DAYS"` // 0 = keep forever
	PruneIntervalHours     int `mapstructure:"PRUNE_INTERVAL_HOURS"`

	// Unauthenticated auth endpoints, per client IP.
	AuthRatePerMinute int `mapstructure:"AUTH_RATE_PER_MINUTE"`
	AuthRateBurst     int `mapstructure:"AUTH_RATE_BURST"`

	// Unauthenticated door-module entry (PIN / face), per client IP.
	EntryRatePerMinute int `mapstructure:"ENTRY_RATE_PER_MINUTE"`
	EntryRateBurst     int `mapstructure:"ENTRY_RATE_BURST"`

	// Account notices (optional)
	MailgunAPIKey  string `mapstructure:"MAILGUN_API_KEY"`
	MailgunDomain  string `mapstructure:"MAILGUN_DOMAIN"`
	MailgunAPIBase string `mapstructure:"MAILGUN_API_BASE"`
	MailFrom       string `mapstructure:"MAIL_FROM"`
	AdminNotify    string `mapstructure:"ADMIN_NOTIFY"` // CSV of admin addresses

	// Face capture archive (optional)
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
}

var defaults = map[string]any{
	"HTTP_ADDR": ":8080",
	"LOG_LEVEL": "info",

	"ENV":     "dev",
	"STORAGE": "sqlite",
	"DB_PATH": "./data/janus.db",

	"JWT_SECRET": "",
	"TOKEN_TTL":  "24h",

	"ADMIN_NAME":     "Administrator",
	"ADMIN_EMAIL":    "",
	"ADMIN_PASSWORD": "",

	"DEVICES":        "door-001",
	"DEFAULT_DEVICE": "",
	"ACK_TIMEOUT":    "5s",

	"FACE_EXTRACTOR_ADDR":  "",
	"FACE_THRESHOLD":       0.90,
	"FACE_MARGIN":          0.03,
	"FACE_MAX_IMAGE_BYTES": 5 << 20,
	"FACE_EXTRACT_TIMEOUT": "10s",

	"HEARTBEAT_RETENTION_DAYS": 30,
	"PRUNE_INTERVAL_HOURS":     6,

	"AUTH_RATE_PER_MINUTE": 20,
	"AUTH_RATE_BURST":      5,

	"ENTRY_RATE_PER_MINUTE": 12,
	"ENTRY_RATE_BURST":      4,

	"MAILGUN_API_KEY":  "",
	"MAILGUN_DOMAIN":   "",
	"MAILGUN_API_BASE": "https://api.mailgun.net/v3",
	"MAIL_FROM":        "",
	"ADMIN_NOTIFY":     "",

	"S3_ENDPOINT":   "",
	"S3_REGION":     "",
	"S3_BUCKET":     "",
	"S3_ACCESS_KEY": "",
	"S3_SECRET_KEY": "",
}

// Load reads configuration from JANUS_* environment variables and an
// optional config.yaml in the working directory or /etc/janus/.
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix("JANUS")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/janus/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.DefaultDevice == "" {
		if ids := c.DeviceIDs(); len(ids) > 0 {
			c.DefaultDevice = ids[0]
		}
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Storage != "sqlite" && c.Storage != "memory" {
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if c.Env == "prod" && len(c.JWTSecret) < 32 {
		return errors.New("config: JANUS_JWT_SECRET must be at least 32 characters in prod")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("config: JANUS_JWT_SECRET too short (%d < 32)", len(c.JWTSecret))
	}
	if c.AckTimeout <= 0 {
		return errors.New("config: ACK_TIMEOUT must be positive")
	}
	if c.FaceThreshold <= 0 || c.FaceThreshold > 1 {
		return fmt.Errorf("config: FACE_THRESHOLD %v out of range (0,1]", c.FaceThreshold)
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return errors.New("config: ADMIN_PASSWORD required when ADMIN_EMAIL is set")
	}
	return nil
}

// DeviceIDs returns the configured lock device ids in declaration order.
func (c Config) DeviceIDs() []string {
	var out []string
	for _, d := range splitCSV(c.Devices) {
		id, _, _ := strings.Cut(d, "=")
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// DeviceURLs maps device ids to their control base URL. Devices listed
// without a URL are absent from the map.
func (c Config) DeviceURLs() map[string]string {
	out := make(map[string]string)
	for _, d := range splitCSV(c.Devices) {
		id, url, ok := strings.Cut(d, "=")
		id, url = strings.TrimSpace(id), strings.TrimSpace(url)
		if ok && id != "" && url != "" {
			out[id] = strings.TrimRight(url, "/")
		}
	}
	return out
}

func (c Config) AdminNotifyAddresses() []string { return splitCSV(c.AdminNotify) }

func (c Config) MailEnabled() bool {
	return c.MailgunAPIKey != "" && c.MailgunDomain != "" && c.MailFrom != ""
}

func (c Config) ArchiveEnabled() bool { return c.S3Bucket != "" }

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
