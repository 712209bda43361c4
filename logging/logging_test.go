package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"trace", zerolog.TraceLevel, true},
		{"debug", zerolog.DebugLevel, true},
		{"info", zerolog.InfoLevel, true},
		{"warn", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"fatal", zerolog.FatalLevel, true},
		{"disabled", zerolog.Disabled, true},
		{"off", zerolog.Disabled, true},
		{"  Debug  ", zerolog.DebugLevel, true},
		{"", zerolog.ErrorLevel, false},
		{"verbose", zerolog.ErrorLevel, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "1")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)

	if cfg.Level != zerolog.WarnLevel {
		t.Fatalf("level = %v, want warn", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("timestamp override not applied")
	}
	if !cfg.NoColor {
		t.Fatalf("nocolor override not applied")
	}
}

func TestApplyEnvOverridesIgnoresInvalid(t *testing.T) {
	t.Setenv(EnvLogLevel, "verbose")
	t.Setenv(EnvLogTimestamp, "maybe")
	t.Setenv(EnvLogNoColor, "")

	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)

	if cfg.Level != zerolog.DebugLevel {
		t.Fatalf("invalid level override changed the profile default: %v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("invalid timestamp override changed the profile default")
	}
	if !cfg.NoColor {
		t.Fatalf("empty nocolor override changed the profile default")
	}
}
