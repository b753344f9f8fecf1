package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/noizee.json"

type AppConfig struct {
	Logging      LoggingConfig      `json:"logging" yaml:"logging" toml:"logging"`
	Manifest     ManifestConfig     `json:"manifest" yaml:"manifest" toml:"manifest"`
	Playback     PlaybackConfig     `json:"playback" yaml:"playback" toml:"playback"`
	Audio        AudioConfig        `json:"audio" yaml:"audio" toml:"audio"`
	MediaControl MediaControlConfig `json:"media_control" yaml:"media_control" toml:"media_control"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
	Output string `json:"output" yaml:"output" toml:"output"`
}

type ManifestConfig struct {
	// Source 文件路径或 http(s) URL
	Source    string `json:"source" yaml:"source" toml:"source"`
	AssetsDir string `json:"assets_dir" yaml:"assets_dir" toml:"assets_dir"`
	Watch     bool   `json:"watch" yaml:"watch" toml:"watch"`
}

type PlaybackConfig struct {
	DefaultVolume  float64 `json:"default_volume" yaml:"default_volume" toml:"default_volume"`
	ConfirmDelayMs int     `json:"confirm_delay_ms" yaml:"confirm_delay_ms" toml:"confirm_delay_ms"`
	MuteTimeoutMs  int     `json:"mute_timeout_ms" yaml:"mute_timeout_ms" toml:"mute_timeout_ms"`
}

type AudioConfig struct {
	Driver     string `json:"driver" yaml:"driver" toml:"driver"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate" toml:"sample_rate"`
	BufferMs   int    `json:"buffer_ms" yaml:"buffer_ms" toml:"buffer_ms"`
	GainStage  bool   `json:"gain_stage" yaml:"gain_stage" toml:"gain_stage"`
}

type MediaControlConfig struct {
	MPRIS  MPRISConfig  `json:"mpris" yaml:"mpris" toml:"mpris"`
	Remote RemoteConfig `json:"remote" yaml:"remote" toml:"remote"`
}

type MPRISConfig struct {
	Enable bool   `json:"enable" yaml:"enable" toml:"enable"`
	Name   string `json:"name" yaml:"name" toml:"name"`
}

type RemoteConfig struct {
	Enable bool   `json:"enable" yaml:"enable" toml:"enable"`
	Addr   string `json:"addr" yaml:"addr" toml:"addr"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Manifest: ManifestConfig{
			Source:    "assets/soundlist.json",
			AssetsDir: "assets",
		},
		Playback: PlaybackConfig{
			DefaultVolume:  0.3,
			ConfirmDelayMs: 150,
			MuteTimeoutMs:  3000,
		},
		Audio: AudioConfig{
			Driver:     "portaudio",
			SampleRate: 44100,
			BufferMs:   100,
			GainStage:  true,
		},
		MediaControl: MediaControlConfig{
			MPRIS: MPRISConfig{
				Enable: true,
				Name:   "noizee",
			},
			Remote: RemoteConfig{
				Addr: "127.0.0.1:8787",
			},
		},
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func decode(path string, data []byte, cfg *AppConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if source := strings.TrimSpace(os.Getenv("NOIZEE_MANIFEST")); source != "" {
		c.Manifest.Source = source
	}
	if driver := strings.TrimSpace(os.Getenv("NOIZEE_AUDIO_DRIVER")); driver != "" {
		c.Audio.Driver = driver
	}
	if addr := strings.TrimSpace(os.Getenv("NOIZEE_REMOTE_ADDR")); addr != "" {
		c.MediaControl.Remote.Addr = addr
		c.MediaControl.Remote.Enable = true
	}
}

func (c *AppConfig) Validate() error {
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 1 {
		return errors.New("playback.default_volume must be within [0,1]")
	}
	if c.Playback.ConfirmDelayMs < 0 {
		return errors.New("playback.confirm_delay_ms must be non-negative")
	}
	if c.Playback.MuteTimeoutMs < 0 {
		return errors.New("playback.mute_timeout_ms must be non-negative")
	}

	switch strings.ToLower(strings.TrimSpace(c.Audio.Driver)) {
	case "portaudio", "speaker", "null":
	default:
		return fmt.Errorf("invalid audio driver: %s", c.Audio.Driver)
	}
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.BufferMs <= 0 {
		return errors.New("audio.buffer_ms must be positive")
	}

	if strings.TrimSpace(c.Manifest.Source) == "" {
		return errors.New("manifest.source is required")
	}
	if c.MediaControl.Remote.Enable && strings.TrimSpace(c.MediaControl.Remote.Addr) == "" {
		return errors.New("media_control.remote.addr is required when remote is enabled")
	}

	return nil
}
