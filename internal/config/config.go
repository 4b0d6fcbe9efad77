// Package config handles loading, parsing, and validating the YAML
// configuration, with .env and environment variable overrides for secrets.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/obs-channel-stats/internal/constants"
	"github.com/Guliveer/obs-channel-stats/internal/utils"
)

// envOverrides lists the variables that take precedence over the YAML file.
type envOverrides struct {
	YouTubeAPIKey      string `env:"YOUTUBE_API_KEY"`
	YouTubeChannelID   string `env:"YOUTUBE_CHANNEL_ID"`
	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`
	TwitchChannel      string `env:"TWITCH_CHANNEL"`
	OBSURL             string `env:"OBS_URL"`
	OBSPassword        string `env:"OBS_PASSWORD"`
}

// LoadEnvFile loads variables from the given .env files into the process
// environment. Variables that are already set are not overwritten.
func LoadEnvFile(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load reads the YAML configuration at path, applies defaults, and overlays
// environment variables.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML settings, applies defaults, and overlays environment
// variables. An empty document yields the defaults.
func Parse(data []byte) (*Settings, error) {
	var cfg Settings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns settings with every platform disabled.
func Default() *Settings {
	var cfg Settings
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Settings) {
	if cfg.Display.NumberFormat == "" {
		cfg.Display.NumberFormat = utils.FormatPlain
	}

	if cfg.Sink.Type == "" {
		cfg.Sink.Type = SinkOBS
	}

	if cfg.Sink.OBS.URL == "" {
		cfg.Sink.OBS.URL = constants.DefaultOBSURL
	}

	if cfg.Log.File == "" {
		cfg.Log.File = constants.DefaultLogFile
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = constants.DefaultListenAddr
	}
}

func applyEnvOverrides(cfg *Settings) error {
	var vars envOverrides
	if err := env.Load(&vars, nil); err != nil {
		return fmt.Errorf("loading environment variables: %w", err)
	}

	override(&cfg.YouTube.APIKey, vars.YouTubeAPIKey)
	override(&cfg.YouTube.ChannelID, vars.YouTubeChannelID)
	override(&cfg.Twitch.ClientID, vars.TwitchClientID)
	override(&cfg.Twitch.ClientSecret, vars.TwitchClientSecret)
	override(&cfg.Twitch.Channel, vars.TwitchChannel)
	override(&cfg.Sink.OBS.URL, vars.OBSURL)
	override(&cfg.Sink.OBS.Password, vars.OBSPassword)
	return nil
}

func override(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// Validate checks the configuration for structural errors. Missing
// credentials are not errors: they disable the matching platform.
func Validate(cfg *Settings) error {
	switch cfg.Display.NumberFormat {
	case utils.FormatPlain, utils.FormatCompact:
	default:
		return fmt.Errorf("display.number_format must be %q or %q, got %q",
			utils.FormatPlain, utils.FormatCompact, cfg.Display.NumberFormat)
	}

	switch cfg.Sink.Type {
	case SinkOBS:
		u, err := url.Parse(cfg.Sink.OBS.URL)
		if err != nil {
			return fmt.Errorf("sink.obs.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("sink.obs.url must use ws:// or wss://, got %q", cfg.Sink.OBS.URL)
		}
	case SinkFile:
		if cfg.Sink.File.Dir == "" {
			return fmt.Errorf("sink.file.dir is required when sink.type is %q", SinkFile)
		}
	case SinkLog:
	default:
		return fmt.Errorf("sink.type must be one of %q, %q, %q, got %q", SinkOBS, SinkFile, SinkLog, cfg.Sink.Type)
	}

	return nil
}

// Warnings returns human-readable notes about settings that leave a
// platform silently disabled or half-configured.
func Warnings(cfg *Settings) []string {
	var warnings []string

	if (cfg.Twitch.ClientID == "") != (cfg.Twitch.ClientSecret == "") {
		warnings = append(warnings, "twitch: client_id and client_secret must both be set, Twitch is disabled")
	}
	if cfg.TwitchEnabled() && cfg.Twitch.Channel == "" {
		warnings = append(warnings, "twitch: channel is empty, Twitch numbers will be 0")
	}
	if cfg.YouTubeEnabled() && cfg.YouTube.ChannelID == "" {
		warnings = append(warnings, "youtube: channel_id is empty, YouTube numbers will be 0")
	}
	if !cfg.TwitchEnabled() && !cfg.YouTubeEnabled() {
		warnings = append(warnings, "no platform credentials configured, every overlay will show 0")
	}
	if cfg.Overlays.IsEmpty() {
		warnings = append(warnings, "no overlays bound, nothing will be written")
	}

	return warnings
}
