package config

import (
	"strings"
	"testing"
)

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.TelegramToken = "123456:test-token"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeTelegram {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeTelegram)
	}
	if cfg.Strategy != StrategyOverlay {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, StrategyOverlay)
	}
	if len(cfg.Fields) != 6 {
		t.Errorf("len(Fields) = %d, want 6", len(cfg.Fields))
	}
	if last := cfg.Fields[len(cfg.Fields)-1]; last.Kind != KindDateTime {
		t.Errorf("last field kind = %q, want %q", last.Kind, KindDateTime)
	}
	if len(cfg.Placements) == 0 {
		t.Error("default placements missing")
	}
}

func TestDefaultPlacementsCoverFieldsAndDerived(t *testing.T) {
	placed := make(map[string]bool)
	for _, p := range DefaultPlacements() {
		placed[p.Field] = true
	}

	for _, f := range DefaultFields() {
		if !placed[f.Name] {
			t.Errorf("field %s has no default placement", f.Name)
		}
	}
	for _, name := range []string{"badge", "report_number", "report_datetime"} {
		if !placed[name] {
			t.Errorf("derived field %s has no default placement", name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid telegram config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid http config without token",
			mutate: func(c *Config) {
				c.Mode = ModeHTTP
				c.TelegramToken = ""
			},
			wantErr: false,
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Mode = "smtp" },
			wantErr: true,
		},
		{
			name: "telegram mode without token",
			mutate: func(c *Config) {
				c.TelegramToken = ""
			},
			wantErr: true,
		},
		{
			name: "http mode with bad port",
			mutate: func(c *Config) {
				c.Mode = ModeHTTP
				c.Port = 0
			},
			wantErr: true,
		},
		{
			name:    "invalid strategy",
			mutate:  func(c *Config) { c.Strategy = "stamp" },
			wantErr: true,
		},
		{
			name:    "remote strategy without url",
			mutate:  func(c *Config) { c.Strategy = StrategyRemote },
			wantErr: true,
		},
		{
			name: "remote strategy with url",
			mutate: func(c *Config) {
				c.Strategy = StrategyRemote
				c.Remote.URL = "http://renderer.internal/render"
			},
			wantErr: false,
		},
		{
			name:    "no fields",
			mutate:  func(c *Config) { c.Fields = nil },
			wantErr: true,
		},
		{
			name: "duplicate field names",
			mutate: func(c *Config) {
				c.Fields = append([]Field{{Name: "email", Prompt: "x", Kind: KindText}}, c.Fields...)
			},
			wantErr: true,
		},
		{
			name: "field with unknown kind",
			mutate: func(c *Config) {
				c.Fields[0].Kind = "phone"
			},
			wantErr: true,
		},
		{
			name: "last field not datetime",
			mutate: func(c *Config) {
				c.Fields = c.Fields[:len(c.Fields)-1]
			},
			wantErr: true,
		},
		{
			name:    "zero template size",
			mutate:  func(c *Config) { c.MaxTemplateSize = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStringElidesToken(t *testing.T) {
	cfg := validTestConfig()
	if s := cfg.String(); strings.Contains(s, cfg.TelegramToken) {
		t.Errorf("String() leaks bot token: %s", s)
	}
}
