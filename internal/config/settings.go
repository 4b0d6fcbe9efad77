package config

import "github.com/Guliveer/obs-channel-stats/internal/model"

// RedactedValue replaces secrets in Settings.Redacted.
const RedactedValue = "********"

// Sink types.
const (
	SinkOBS  = "obs"
	SinkFile = "file"
	SinkLog  = "log"
)

// Settings is the full runtime configuration. A *Settings handed out by
// Store is never mutated; updates go through Store.Replace with a new value.
type Settings struct {
	YouTube YouTubeConfig `yaml:"youtube" json:"youtube"`

	Twitch TwitchConfig `yaml:"twitch" json:"twitch"`

	Overlays model.Bindings `yaml:"overlays" json:"overlays"`

	Display DisplayConfig `yaml:"display" json:"display"`

	Sink SinkConfig `yaml:"sink" json:"sink"`

	Log LogConfig `yaml:"log" json:"log"`

	Server ServerConfig `yaml:"server" json:"server"`

	// AutoStart starts polling as soon as the service is up.
	AutoStart bool `yaml:"auto_start" json:"auto_start"`
}

// YouTubeConfig holds the Data API key and the channel to watch.
type YouTubeConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	ChannelID string `yaml:"channel_id" json:"channel_id"`
}

// TwitchConfig holds the app credentials and the channel login to watch.
type TwitchConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	Channel      string `yaml:"channel" json:"channel"`
}

// DisplayConfig controls how numbers are rendered into overlays.
type DisplayConfig struct {
	// NumberFormat is "plain" (1500) or "compact" (1.5K).
	NumberFormat string `yaml:"number_format" json:"number_format"`
}

// SinkConfig selects where overlay text is written.
type SinkConfig struct {
	Type string         `yaml:"type" json:"type"`
	OBS  OBSConfig      `yaml:"obs" json:"obs"`
	File FileSinkConfig `yaml:"file" json:"file"`
}

// OBSConfig holds the obs-websocket connection settings.
type OBSConfig struct {
	URL      string `yaml:"url" json:"url"`
	Password string `yaml:"password" json:"password"`
}

// FileSinkConfig holds the directory the file sink writes <name>.txt files to.
type FileSinkConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// LogConfig holds the log file path and level.
type LogConfig struct {
	File  string `yaml:"file" json:"file"`
	Level string `yaml:"level" json:"level"`
}

// ServerConfig holds the control server listen address.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// YouTubeEnabled reports whether YouTube lookups should run.
func (s *Settings) YouTubeEnabled() bool {
	return s.YouTube.APIKey != ""
}

// TwitchEnabled reports whether both Twitch app credentials are present.
func (s *Settings) TwitchEnabled() bool {
	return s.Twitch.ClientID != "" && s.Twitch.ClientSecret != ""
}

// Clone returns a copy of s that can be modified freely.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// Redacted returns a copy with every secret replaced by RedactedValue.
func (s *Settings) Redacted() *Settings {
	c := s.Clone()
	redact(&c.YouTube.APIKey)
	redact(&c.Twitch.ClientSecret)
	redact(&c.Sink.OBS.Password)
	return c
}

// KeepSecrets copies secrets from prev into s wherever s still holds
// RedactedValue, so a redacted document can be edited and sent back.
func (s *Settings) KeepSecrets(prev *Settings) {
	keep(&s.YouTube.APIKey, prev.YouTube.APIKey)
	keep(&s.Twitch.ClientSecret, prev.Twitch.ClientSecret)
	keep(&s.Sink.OBS.Password, prev.Sink.OBS.Password)
}

func redact(v *string) {
	if *v != "" {
		*v = RedactedValue
	}
}

func keep(v *string, prev string) {
	if *v == RedactedValue {
		*v = prev
	}
}
