package model

import "time"

// SchedulerState is the state of the polling scheduler.
type SchedulerState string

// Scheduler states.
const (
	StateStopped SchedulerState = "stopped"
	StateRunning SchedulerState = "running"
)

// TwitchSession describes the cached Twitch auth artifacts of a session.
// The token itself is never exposed.
type TwitchSession struct {
	Enabled        bool      `json:"enabled"`
	Channel        string    `json:"channel,omitempty"`
	HasToken       bool      `json:"has_token"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitempty"`
	BroadcasterID  string    `json:"broadcaster_id,omitempty"`
}

// SessionInfo describes the state cached between a start and the next
// stop or restart.
type SessionInfo struct {
	StartedAt       time.Time     `json:"started_at,omitempty"`
	Twitch          TwitchSession `json:"twitch"`
	YouTubeStreamID string        `json:"youtube_stream_id,omitempty"`
}
