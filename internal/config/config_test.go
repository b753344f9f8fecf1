package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MergesDefaultsAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "noizee.json")
	data := `{
		"logging": {"level": "debug"},
		"playback": {"default_volume": 0.5},
		"audio": {"driver": "null"}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("NOIZEE_MANIFEST", "https://example.invalid/soundlist.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to override config, got %q", cfg.Logging.Level)
	}
	if cfg.Playback.DefaultVolume != 0.5 {
		t.Fatalf("expected default volume 0.5, got %v", cfg.Playback.DefaultVolume)
	}
	if cfg.Playback.MuteTimeoutMs != 3000 {
		t.Fatalf("expected default mute timeout to be preserved, got %d", cfg.Playback.MuteTimeoutMs)
	}
	if cfg.Audio.Driver != "null" {
		t.Fatalf("expected driver null, got %q", cfg.Audio.Driver)
	}
	if cfg.Manifest.Source != "https://example.invalid/soundlist.json" {
		t.Fatalf("expected manifest source from env, got %q", cfg.Manifest.Source)
	}
}

func TestLoad_YAMLAndTOML(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "noizee.yaml")
	yamlData := "playback:\n  confirm_delay_ms: 0\naudio:\n  driver: speaker\n  sample_rate: 48000\n  buffer_ms: 50\n"
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load(yaml) error = %v", err)
	}
	if cfg.Audio.Driver != "speaker" || cfg.Audio.SampleRate != 48000 || cfg.Playback.ConfirmDelayMs != 0 {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}

	tomlPath := filepath.Join(tmpDir, "noizee.toml")
	tomlData := "[media_control.remote]\nenable = true\naddr = \"127.0.0.1:9999\"\n"
	if err := os.WriteFile(tomlPath, []byte(tomlData), 0o600); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err = Load(tomlPath)
	if err != nil {
		t.Fatalf("Load(toml) error = %v", err)
	}
	if !cfg.MediaControl.Remote.Enable || cfg.MediaControl.Remote.Addr != "127.0.0.1:9999" {
		t.Fatalf("unexpected toml remote config: %+v", cfg.MediaControl.Remote)
	}
	if !cfg.MediaControl.MPRIS.Enable {
		t.Fatalf("expected default mpris settings to be preserved")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Playback.DefaultVolume != 0.3 {
		t.Fatalf("expected default volume 0.3, got %v", cfg.Playback.DefaultVolume)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"volume above one", func(c *AppConfig) { c.Playback.DefaultVolume = 1.5 }},
		{"negative confirm delay", func(c *AppConfig) { c.Playback.ConfirmDelayMs = -1 }},
		{"unknown driver", func(c *AppConfig) { c.Audio.Driver = "alsa" }},
		{"zero sample rate", func(c *AppConfig) { c.Audio.SampleRate = 0 }},
		{"empty manifest", func(c *AppConfig) { c.Manifest.Source = " " }},
		{"remote without addr", func(c *AppConfig) {
			c.MediaControl.Remote.Enable = true
			c.MediaControl.Remote.Addr = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
