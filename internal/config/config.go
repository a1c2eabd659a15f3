// Package config loads deployment configuration from defaults, an
// optional YAML file, environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Transport modes
	ModeTelegram = "telegram"
	ModeHTTP     = "http"

	// Rendering strategies
	StrategyOverlay  = "overlay"
	StrategyFormFill = "formfill"
	StrategyRemote   = "remote"

	// Field kinds understood by the intake validators
	KindText     = "text"
	KindEmail    = "email"
	KindMoney    = "money"
	KindDateTime = "datetime"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultMaxTemplateSize = 20 * 1024 * 1024 // 20MB
	DefaultSessionTTLMin   = 30
	DefaultRemoteTimeoutS  = 30

	// Overlay text styles
	DefaultFont      = "Helvetica-Bold"
	DefaultLabelSize = 10
	DefaultTitleSize = 12
)

// Field describes one intake question: the stored name, the prompt shown
// to the user and the validator kind applied to the answer.
type Field struct {
	Name   string `mapstructure:"name"`
	Prompt string `mapstructure:"prompt"`
	Kind   string `mapstructure:"kind"`
}

// Placement positions one field's value on page 1 of the template, in
// PDF user-space points with the origin at the bottom-left corner. The
// same field may appear in several placements. Anchor defaults to the
// bottom-left corner; "bc" centers the text horizontally.
type Placement struct {
	Field  string  `mapstructure:"field"`
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Font   string  `mapstructure:"font"`
	Size   int     `mapstructure:"size"`
	Anchor string  `mapstructure:"anchor"`
}

// Remote configures the remote rendering backend used by the "remote"
// strategy.
type Remote struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Config holds all configuration for the intake service.
type Config struct {
	// Transport configuration
	Mode          string `mapstructure:"mode"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	TelegramToken string `mapstructure:"telegram_token"`

	// Application configuration
	Version         string `mapstructure:"-"`
	LogLevel        string `mapstructure:"loglevel"`
	MaxTemplateSize int64  `mapstructure:"max_template_size"`

	// Session configuration
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes"`

	// Intake configuration
	Fields []Field  `mapstructure:"fields"`
	Roster []string `mapstructure:"roster"`

	// Rendering configuration
	Strategy    string      `mapstructure:"strategy"`
	Placements  []Placement `mapstructure:"placements"`
	FormOverlay []Placement `mapstructure:"form_overlay"`
	Remote      Remote      `mapstructure:"remote"`
}

// DefaultConfig returns a configuration with sensible defaults: the
// six-question intake sequence and the overlay placement table of the
// standard report template.
func DefaultConfig() *Config {
	return &Config{
		Mode:              ModeTelegram,
		Host:              DefaultHost,
		Port:              DefaultPort,
		Version:           "1.0.0",
		LogLevel:          DefaultLogLevel,
		MaxTemplateSize:   DefaultMaxTemplateSize,
		SessionTTLMinutes: DefaultSessionTTLMin,
		Fields:            DefaultFields(),
		Strategy:          StrategyOverlay,
		Placements:        DefaultPlacements(),
		Remote:            Remote{TimeoutSeconds: DefaultRemoteTimeoutS},
	}
}

// DefaultFields returns the standard intake sequence. The delivery
// date/time question is last: answering it completes the session.
func DefaultFields() []Field {
	return []Field{
		{Name: "first_name", Prompt: "Enter First Name:", Kind: KindText},
		{Name: "last_name", Prompt: "Enter Last Name:", Kind: KindText},
		{Name: "email", Prompt: "Enter Email:", Kind: KindEmail},
		{Name: "tracking_number", Prompt: "Enter Tracking Number:", Kind: KindText},
		{Name: "order_total", Prompt: "What was the order total?", Kind: KindMoney},
		{Name: "delivery_datetime", Prompt: "Enter delivery date & time (e.g. 2025-05-21 2:15 PM):", Kind: KindDateTime},
	}
}

// DefaultPlacements returns the page-1 coordinate table for the standard
// report template. The report date/time is stamped twice: once in the
// body next to the delivery date/time and once in the footer.
func DefaultPlacements() []Placement {
	return []Placement{
		{Field: "first_name", X: 145, Y: 543, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "last_name", X: 92, Y: 543, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "email", X: 135, Y: 439, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "tracking_number", X: 142, Y: 505, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "badge", X: 440, Y: 505, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "order_total", X: 405, Y: 685, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "delivery_datetime", X: 290, Y: 610, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "report_datetime", X: 415, Y: 610, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "report_datetime", X: 460, Y: 50, Font: DefaultFont, Size: DefaultLabelSize},
		{Field: "report_number", X: 188, Y: 730, Font: DefaultFont, Size: DefaultTitleSize},
	}
}

// LoadFromFlags parses command line flags, the optional config file and
// the environment, and returns a validated configuration.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()

	pflag.Parse()

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FIELDSTAMP")
	viper.AutomaticEnv()

	viper.SetDefault("config", "")
	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("telegram_token", cfg.TelegramToken)
	viper.SetDefault("strategy", cfg.Strategy)
	viper.SetDefault("max_template_size", cfg.MaxTemplateSize)
	viper.SetDefault("session_ttl_minutes", cfg.SessionTTLMinutes)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("config", "", "Path to YAML deployment configuration file")
	pflag.String("mode", cfg.Mode, "Transport mode: 'telegram' or 'http'")
	pflag.String("host", cfg.Host, "HTTP server host address (http mode only)")
	pflag.Int("port", cfg.Port, "HTTP server port (http mode only)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("strategy", cfg.Strategy, "Rendering strategy: 'overlay', 'formfill' or 'remote'")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("config", pflag.Lookup("config"))
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("strategy", pflag.Lookup("strategy"))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeTelegram && c.Mode != ModeHTTP {
		return errors.New("mode must be either 'telegram' or 'http'")
	}

	if c.Mode == ModeTelegram && c.TelegramToken == "" {
		return errors.New("telegram mode requires a bot token (FIELDSTAMP_TELEGRAM_TOKEN)")
	}

	if c.Mode == ModeHTTP && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	switch c.Strategy {
	case StrategyOverlay, StrategyFormFill:
	case StrategyRemote:
		if c.Remote.URL == "" {
			return errors.New("remote strategy requires remote.url")
		}
	default:
		return fmt.Errorf("invalid strategy: %s (must be one of: overlay, formfill, remote)", c.Strategy)
	}

	if c.MaxTemplateSize <= 0 {
		return errors.New("maximum template size must be positive")
	}

	if err := validateFields(c.Fields); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

func validateFields(fields []Field) error {
	if len(fields) == 0 {
		return errors.New("at least one intake field is required")
	}

	validKinds := map[string]bool{
		KindText:     true,
		KindEmail:    true,
		KindMoney:    true,
		KindDateTime: true,
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return errors.New("intake field with empty name")
		}
		if f.Prompt == "" {
			return fmt.Errorf("intake field %s has no prompt", f.Name)
		}
		if !validKinds[f.Kind] {
			return fmt.Errorf("intake field %s has invalid kind: %s", f.Name, f.Kind)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate intake field: %s", f.Name)
		}
		seen[f.Name] = true
	}

	// Completion schedules the follow-up off the delivery instant, so
	// the sequence must end on a datetime question.
	if last := fields[len(fields)-1]; last.Kind != KindDateTime {
		return fmt.Errorf("last intake field must have kind datetime, got %s", last.Kind)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsTelegramMode returns true if the service runs as a Telegram bot
func (c *Config) IsTelegramMode() bool {
	return c.Mode == ModeTelegram
}

// IsHTTPMode returns true if the service runs as an HTTP server
func (c *Config) IsHTTPMode() bool {
	return c.Mode == ModeHTTP
}

// String returns a string representation of the configuration with the
// bot token elided.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Strategy: %s, Fields: %d, LogLevel: %s}",
		c.Mode, c.Host, c.Port, c.Strategy, len(c.Fields), c.LogLevel)
}

// VersionRequested reports whether a version flag is present on the
// command line, checked before full flag parsing.
func VersionRequested() bool {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}
