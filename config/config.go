package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved application configuration. It is loaded once at
// startup from an optional clearwatch.yaml plus environment overrides and is
// read-only afterwards.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Log         LogConfig      `mapstructure:"log"`
	Detector    DetectorConfig `mapstructure:"detector"`
	Events      EventsConfig   `mapstructure:"events"`
	Worker      WorkerConfig   `mapstructure:"worker"`
	API         APIConfig      `mapstructure:"api"`
}

// LogConfig controls the zap logger built by the binaries.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// DetectorConfig holds capture and rule-engine tunables.
type DetectorConfig struct {
	TsharkPath     string          `mapstructure:"tshark_path" validate:"required"`
	Interface      string          `mapstructure:"interface" validate:"required"`
	BPF            string          `mapstructure:"bpf"`
	AllowlistCIDRs []string        `mapstructure:"allowlist_cidrs"`
	MaxBodyKB      int             `mapstructure:"max_body_kb" validate:"gt=0"`
	Protocols      ProtocolsConfig `mapstructure:"protocols"`
}

// MaxBodyBytes returns the HTTP body scan cap in bytes.
func (c *DetectorConfig) MaxBodyBytes() int {
	return c.MaxBodyKB * 1024
}

// ProtocolsConfig enables individual protocol evaluators. POP3 and IMAP
// share one switch, matching the wire reality that mail clients speak both.
type ProtocolsConfig struct {
	HTTP     HTTPConfig   `mapstructure:"http"`
	SMTP     ToggleConfig `mapstructure:"smtp"`
	IMAPPOP3 ToggleConfig `mapstructure:"imap_pop3"`
	FTP      ToggleConfig `mapstructure:"ftp"`
	Telnet   ToggleConfig `mapstructure:"telnet"`
	TLS      TLSConfig    `mapstructure:"tls"`
	DNS      ToggleConfig `mapstructure:"dns"`
	SMB      ToggleConfig `mapstructure:"smb"`
}

// ToggleConfig is a bare on/off protocol switch.
type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HTTPConfig holds the HTTP evaluator tunables.
type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	CredentialKeys []string `mapstructure:"credential_keys"`
}

// TLSConfig holds the TLS evaluator tunables.
type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	MinVersion string `mapstructure:"min_version"`
	RequireSNI bool   `mapstructure:"require_sni"`
}

// EventsConfig holds the rotating event sink settings.
type EventsConfig struct {
	Dir                string `mapstructure:"dir" validate:"required"`
	RotateEveryMinutes int    `mapstructure:"rotate_every_minutes" validate:"gt=0"`
	RotateMaxMB        int    `mapstructure:"rotate_max_mb" validate:"gt=0"`
	FilenameFormat     string `mapstructure:"filename_format" validate:"required"`
}

// RotateInterval returns the maximum segment age.
func (c *EventsConfig) RotateInterval() time.Duration {
	return time.Duration(c.RotateEveryMinutes) * time.Minute
}

// RotateMaxBytes returns the maximum segment size in bytes.
func (c *EventsConfig) RotateMaxBytes() int64 {
	return int64(c.RotateMaxMB) * 1024 * 1024
}

// WorkerConfig holds LLM report generation settings.
type WorkerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Model             string `mapstructure:"model"`
	OllamaURL         string `mapstructure:"ollama_url"`
	WindowMinutes     int    `mapstructure:"window_minutes" validate:"gt=0"`
	MaxLinesPerWindow int    `mapstructure:"max_lines_per_window" validate:"gt=0"`
	ReportsDir        string `mapstructure:"reports_dir" validate:"required"`
}

// APIConfig holds the query API server settings. When TokenSecret is empty
// the API runs unauthenticated, which is only sane on loopback.
type APIConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host" validate:"required"`
	Port        int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	TokenSecret string `mapstructure:"token_secret"`
}

// Address returns the API listen address.
func (c *APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// New loads, resolves and validates the configuration. A missing config file
// is fine; missing required values are not.
func New() (*Config, error) {
	// .env is optional developer convenience, same as the control-plane setup
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigName("clearwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/clearwatch")

	setDefaults(v)

	v.SetEnvPrefix("clearwatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("detector.tshark_path", "/usr/bin/tshark")
	v.SetDefault("detector.interface", "eth0")
	v.SetDefault("detector.max_body_kb", 64)
	v.SetDefault("detector.allowlist_cidrs", []string{})
	v.SetDefault("detector.protocols.http.enabled", true)
	v.SetDefault("detector.protocols.http.credential_keys", []string{
		"password", "passwd", "pwd", "pass", "token", "secret", "api_key", "apikey", "auth",
	})
	v.SetDefault("detector.protocols.smtp.enabled", true)
	v.SetDefault("detector.protocols.imap_pop3.enabled", true)
	v.SetDefault("detector.protocols.ftp.enabled", true)
	v.SetDefault("detector.protocols.telnet.enabled", true)
	v.SetDefault("detector.protocols.tls.enabled", true)
	v.SetDefault("detector.protocols.tls.min_version", "1.2")
	v.SetDefault("detector.protocols.tls.require_sni", false)
	v.SetDefault("detector.protocols.dns.enabled", false)
	v.SetDefault("detector.protocols.smb.enabled", false)

	v.SetDefault("events.dir", "clearwatch/events")
	v.SetDefault("events.rotate_every_minutes", 60)
	v.SetDefault("events.rotate_max_mb", 50)
	v.SetDefault("events.filename_format", "2006-01-02_15-04-05")

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.model", "llama3")
	v.SetDefault("worker.ollama_url", "http://127.0.0.1:11434")
	v.SetDefault("worker.window_minutes", 10)
	v.SetDefault("worker.max_lines_per_window", 500)
	v.SetDefault("worker.reports_dir", "clearwatch/reports")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8088)
	v.SetDefault("api.token_secret", "")
}
