// Package constants defines OBS protocol values, default timeouts and
// intervals used throughout the service.
package constants

import "time"

// DefaultOBSURL is the default obs-websocket v5 endpoint.
const DefaultOBSURL = "ws://localhost:4455"

// TickInterval is the fixed polling interval. A YouTube search costs 100
// quota units and each list call costs 1; at one tick per minute a session
// stays well inside the default 10,000 units/day. Do not lower it.
const TickInterval = 60 * time.Second

const (
	// DefaultHTTPTimeout bounds every Twitch and YouTube request.
	DefaultHTTPTimeout = 10 * time.Second
	// OBSRequestTimeout bounds a single obs-websocket request/response exchange.
	OBSRequestTimeout = 5 * time.Second
	// OBSDialTimeout bounds connecting and identifying with obs-websocket.
	OBSDialTimeout = 5 * time.Second
	// TokenRefreshMargin is how long before expiry a Twitch app token is
	// considered stale.
	TokenRefreshMargin = 5 * time.Minute
	// DefaultGracefulShutdownTimeout is the maximum time to wait for the
	// control server to shut down.
	DefaultGracefulShutdownTimeout = 10 * time.Second
)

const (
	// DefaultConfigFile is the configuration file loaded when -config is not set.
	DefaultConfigFile = "config.yaml"
	// DefaultLogFile is the append-only log file name.
	DefaultLogFile = "obs_channel_stats_log.txt"
	// DefaultListenAddr is the control server address. The control API has
	// no authentication, so it only listens on loopback by default.
	DefaultListenAddr = "127.0.0.1:8080"
)

// OBS input kinds (unversioned) that render plain text.
var TextInputKinds = map[string]bool{
	"text_gdiplus":    true,
	"text_ft2_source": true,
}
