// Package config loads the voiceloop configuration from a YAML file.
// The file is read once at startup; zero fields fall back to defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration time.Duration

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	// allow: "500ms", "2s", or integer milliseconds
	switch value.Tag {
	case "!!int":
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Millisecond)
		return nil
	case "!!str":
		if value.Value == "" {
			*d = 0
			return nil
		}
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		if i, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
			*d = Duration(time.Duration(i) * time.Millisecond)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	default:
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Endpoints   EndpointsConfig   `yaml:"endpoints"`
	TTS         TTSConfig         `yaml:"tts"`
	Sound       SoundConfig       `yaml:"sound"`
	Recognition RecognitionConfig `yaml:"recognition"`
	HandsFree   HandsFreeConfig   `yaml:"hands_free"`
	LogLevel    string            `yaml:"log_level"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type EndpointsConfig struct {
	// LatestOutput serves the newest assistant reply as plain text with
	// X-Message-Id and X-Message-Timestamp response headers.
	LatestOutput string `yaml:"latest_output"`

	// LatestInput serves the cleaned user input. Optional; fetch failures
	// are ignored.
	LatestInput string `yaml:"latest_input"`

	// Chat is the websocket endpoint messages are submitted through.
	Chat string `yaml:"chat"`
}

type TTSConfig struct {
	PollInterval  Duration `yaml:"poll_interval"`  // default 1500ms
	MinimumDelay  Duration `yaml:"minimum_delay"`  // default 1000ms
	VoicePriority string   `yaml:"voice_priority"` // exact voice name, optional
	Rate          float64  `yaml:"rate"`           // default 1.0
	Pitch         float64  `yaml:"pitch"`          // default 1.0
}

type SoundConfig struct {
	PollInterval    Duration `yaml:"poll_interval"`    // default 1000ms
	Enabled         *bool    `yaml:"enabled"`          // default true
	Volume          float64  `yaml:"volume"`           // default 0.5
	MaxSimultaneous int      `yaml:"max_simultaneous"` // default 3
}

type RecognitionConfig struct {
	Continuous     bool     `yaml:"continuous"`
	InterimResults *bool    `yaml:"interim_results"` // default true
	Language       string   `yaml:"language"`        // default en-US
	Countdown      Duration `yaml:"countdown"`       // countdown ring duration
}

type HandsFreeConfig struct {
	RestartDelay Duration `yaml:"restart_delay"` // default 1500ms
}

// Load reads the config file at path. A missing file is not an error;
// defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Bind == "" {
		c.Server.Bind = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8710
	}
	if c.TTS.PollInterval == 0 {
		c.TTS.PollInterval = Duration(1500 * time.Millisecond)
	}
	if c.TTS.MinimumDelay == 0 {
		c.TTS.MinimumDelay = Duration(1000 * time.Millisecond)
	}
	if c.TTS.Rate == 0 {
		c.TTS.Rate = 1.0
	}
	if c.TTS.Pitch == 0 {
		c.TTS.Pitch = 1.0
	}
	if c.Sound.PollInterval == 0 {
		c.Sound.PollInterval = Duration(1000 * time.Millisecond)
	}
	if c.Sound.Enabled == nil {
		t := true
		c.Sound.Enabled = &t
	}
	if c.Sound.Volume == 0 {
		c.Sound.Volume = 0.5
	}
	if c.Sound.MaxSimultaneous == 0 {
		c.Sound.MaxSimultaneous = 3
	}
	if c.Recognition.InterimResults == nil {
		t := true
		c.Recognition.InterimResults = &t
	}
	if c.Recognition.Language == "" {
		c.Recognition.Language = "en-US"
	}
	if c.Recognition.Countdown == 0 {
		c.Recognition.Countdown = Duration(5 * time.Second)
	}
	if c.HandsFree.RestartDelay == 0 {
		c.HandsFree.RestartDelay = Duration(1500 * time.Millisecond)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
