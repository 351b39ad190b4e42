package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DataBackend != "memory" {
		t.Errorf("DataBackend = %q, want memory", cfg.DataBackend)
	}
	if cfg.SweepTime != "09:00" {
		t.Errorf("SweepTime = %q, want 09:00", cfg.SweepTime)
	}
	if len(cfg.ReminderTimes) != 1 || cfg.ReminderTimes[0] != "20:00" {
		t.Errorf("ReminderTimes = %v, want [20:00]", cfg.ReminderTimes)
	}
	if cfg.StoreTimeout != 15*time.Second {
		t.Errorf("StoreTimeout = %v, want 15s", cfg.StoreTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", t.TempDir()+"/finbot.db")
	t.Setenv("REMINDER_TIMES", "12:00, 18:30 ,21:00")
	t.Setenv("STORE_TIMEOUT", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.DataBackend != "sqlite" {
		t.Errorf("DataBackend = %q, want sqlite", cfg.DataBackend)
	}
	if len(cfg.ReminderTimes) != 3 || cfg.ReminderTimes[1] != "18:30" {
		t.Errorf("ReminderTimes = %v, want trimmed three marks", cfg.ReminderTimes)
	}
	if cfg.StoreTimeout != 30*time.Second {
		t.Errorf("StoreTimeout = %v, want 30s", cfg.StoreTimeout)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", cfg.SlogLevel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		LogLevel:      "loud",
		DataBackend:   "oracle",
		AMQPURL:       "http://not-amqp",
		SweepTime:     "9 o'clock",
		ReminderTimes: []string{"noon"},
		StoreTimeout:  time.Millisecond,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	for _, want := range []string{
		"invalid log level",
		"invalid data backend",
		"invalid AMQP URL scheme",
		"invalid sweep time",
		"invalid reminder time",
		"invalid store timeout",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "sheets without spreadsheet id",
			cfg:  Config{LogLevel: "info", DataBackend: "sheets", SweepTime: "09:00", StoreTimeout: 15 * time.Second},
			want: "Spreadsheet ID is required",
		},
		{
			name: "postgres without dsn",
			cfg:  Config{LogLevel: "info", DataBackend: "postgres", SweepTime: "09:00", StoreTimeout: 15 * time.Second},
			want: "POSTGRES_DSN is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate = %v, want error containing %q", err, tc.want)
			}
		})
	}
}
