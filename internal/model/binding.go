package model

import "strings"

// NoTextSource is the placeholder a settings form uses for "nothing selected".
// It is treated the same as an empty name.
const NoTextSource = "[No text source]"

// Bindings maps each metric slot to the name of the overlay that displays it.
// An empty name leaves the slot unbound.
type Bindings struct {
	YouTubeViewers string `yaml:"youtube_viewers" json:"youtube_viewers"`
	TwitchViewers  string `yaml:"twitch_viewers" json:"twitch_viewers"`
	YouTubeSubs    string `yaml:"youtube_subs" json:"youtube_subs"`
	TwitchSubs     string `yaml:"twitch_subs" json:"twitch_subs"`
}

// Name returns the normalized overlay name bound to slot, or "" when unbound.
func (b Bindings) Name(slot Slot) string {
	var raw string
	switch slot {
	case SlotYouTubeViewers:
		raw = b.YouTubeViewers
	case SlotTwitchViewers:
		raw = b.TwitchViewers
	case SlotYouTubeSubs:
		raw = b.YouTubeSubs
	case SlotTwitchSubs:
		raw = b.TwitchSubs
	}
	return NormalizeOverlayName(raw)
}

// IsEmpty reports whether no slot is bound.
func (b Bindings) IsEmpty() bool {
	for _, slot := range AllSlots() {
		if b.Name(slot) != "" {
			return false
		}
	}
	return true
}

// NormalizeOverlayName trims whitespace and maps the placeholder to "".
func NormalizeOverlayName(name string) string {
	name = strings.TrimSpace(name)
	if name == NoTextSource {
		return ""
	}
	return name
}
