package model

// Slot represents one of the four metric categories before overlay binding.
type Slot string

// All metric slots.
const (
	SlotYouTubeViewers Slot = "youtube_viewers"
	SlotTwitchViewers  Slot = "twitch_viewers"
	SlotYouTubeSubs    Slot = "youtube_subs"
	SlotTwitchSubs     Slot = "twitch_subs"
)

// AllSlots returns every slot in display order.
func AllSlots() []Slot {
	return []Slot{
		SlotYouTubeViewers,
		SlotTwitchViewers,
		SlotYouTubeSubs,
		SlotTwitchSubs,
	}
}

// Snapshot holds the numbers fetched during a single tick.
// It is produced fresh each tick and dropped once written to the overlays.
type Snapshot struct {
	YouTubeViewers     int `json:"youtube_viewers"`
	TwitchViewers      int `json:"twitch_viewers"`
	YouTubeSubscribers int `json:"youtube_subscribers"`
	TwitchFollowers    int `json:"twitch_followers"`
}

// Value returns the number stored for the given slot.
func (s Snapshot) Value(slot Slot) int {
	switch slot {
	case SlotYouTubeViewers:
		return s.YouTubeViewers
	case SlotTwitchViewers:
		return s.TwitchViewers
	case SlotYouTubeSubs:
		return s.YouTubeSubscribers
	case SlotTwitchSubs:
		return s.TwitchFollowers
	default:
		return 0
	}
}

// IsZero reports whether every field is zero.
func (s Snapshot) IsZero() bool {
	return s == Snapshot{}
}
