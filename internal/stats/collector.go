package stats

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Guliveer/obs-channel-stats/internal/config"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/model"
	"github.com/Guliveer/obs-channel-stats/internal/twitch"
)

// LiveStreamFinder resolves the ongoing live stream of a YouTube channel.
type LiveStreamFinder interface {
	FindLiveStreamID(ctx context.Context, apiKey, channelID string) (string, error)
}

// YouTubeAPI is the YouTube surface a Collector needs.
type YouTubeAPI interface {
	LiveStreamFinder
	YouTubeSource
}

// Collector ties a polling session to the platform clients: it resolves the
// session artifacts on start and runs fetch-then-write on every tick.
type Collector struct {
	store   *config.Store
	twitch  twitch.API
	youtube YouTubeAPI
	agg     *Aggregator
	clock   clockwork.Clock
	log     *logger.Logger

	mu        sync.Mutex
	startedAt time.Time
	streamID  string
}

// NewCollector creates a Collector reading settings from store.
func NewCollector(store *config.Store, tw twitch.API, yt YouTubeAPI, agg *Aggregator, clock clockwork.Clock, log *logger.Logger) *Collector {
	return &Collector{
		store:   store,
		twitch:  tw,
		youtube: yt,
		agg:     agg,
		clock:   clock,
		log:     log,
	}
}

// StartSession acquires the Twitch token and broadcaster ID and resolves
// the YouTube live stream. Every step is best effort.
func (c *Collector) StartSession(ctx context.Context) {
	cfg := c.store.Current()

	c.twitch.Start(ctx, cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, cfg.Twitch.Channel)

	var streamID string
	if cfg.YouTubeEnabled() && cfg.YouTube.ChannelID != "" {
		id, err := c.youtube.FindLiveStreamID(ctx, cfg.YouTube.APIKey, cfg.YouTube.ChannelID)
		if err != nil {
			c.log.WarnContext(ctx, "YouTube live stream not resolved, viewers will be 0 until restart",
				"platform", "youtube", "channel", cfg.YouTube.ChannelID, "error", err)
		}
		streamID = id
	}

	c.mu.Lock()
	c.startedAt = c.clock.Now()
	c.streamID = streamID
	c.mu.Unlock()
}

// EndSession discards the session artifacts.
func (c *Collector) EndSession(_ context.Context) {
	c.twitch.Reset()

	c.mu.Lock()
	c.startedAt = time.Time{}
	c.streamID = ""
	c.mu.Unlock()
}

// Tick fetches a snapshot with the settings current at its start and
// writes it to the bound overlays. The snapshot is not kept.
func (c *Collector) Tick(ctx context.Context) error {
	cfg := c.store.Current()

	c.mu.Lock()
	streamID := c.streamID
	c.mu.Unlock()

	snap := c.agg.ComputeSnapshot(ctx, cfg, streamID)
	return c.agg.ApplyToOverlays(ctx, snap, cfg.Overlays, cfg.Display.NumberFormat)
}

// SessionInfo describes the current session.
func (c *Collector) SessionInfo() model.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return model.SessionInfo{
		StartedAt:       c.startedAt,
		Twitch:          c.twitch.Info(),
		YouTubeStreamID: c.streamID,
	}
}
