// Package stats turns platform lookups into a per-tick snapshot and writes
// it to the bound overlays.
package stats

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/Guliveer/obs-channel-stats/internal/config"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/metrics"
	"github.com/Guliveer/obs-channel-stats/internal/model"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
	"github.com/Guliveer/obs-channel-stats/internal/utils"
)

// TwitchSource supplies the Twitch numbers of the current session.
type TwitchSource interface {
	Viewers(ctx context.Context) (int, error)
	Followers(ctx context.Context) (int, error)
}

// YouTubeSource supplies the YouTube numbers.
type YouTubeSource interface {
	CurrentViewers(ctx context.Context, apiKey, streamID string) (int, error)
	SubscriberCount(ctx context.Context, apiKey, channelID string) (int, error)
}

// Aggregator fetches a snapshot and writes it to overlays.
type Aggregator struct {
	twitch  TwitchSource
	youtube YouTubeSource
	sink    overlay.Sink
	log     *logger.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(tw TwitchSource, yt YouTubeSource, sink overlay.Sink, log *logger.Logger) *Aggregator {
	return &Aggregator{twitch: tw, youtube: yt, sink: sink, log: log}
}

// ComputeSnapshot queries each platform whose credentials are present in
// cfg. A platform without credentials contributes zeros and makes no
// request. Any lookup that fails, or panics, contributes 0 without
// affecting the other platform.
func (a *Aggregator) ComputeSnapshot(ctx context.Context, cfg *config.Settings, streamID string) model.Snapshot {
	var snap model.Snapshot

	if cfg.YouTubeEnabled() {
		a.guard(ctx, "youtube", func() {
			snap.YouTubeViewers = a.lookup(ctx, "youtube", "viewers", func() (int, error) {
				return a.youtube.CurrentViewers(ctx, cfg.YouTube.APIKey, streamID)
			})
			snap.YouTubeSubscribers = a.lookup(ctx, "youtube", "subscribers", func() (int, error) {
				return a.youtube.SubscriberCount(ctx, cfg.YouTube.APIKey, cfg.YouTube.ChannelID)
			})
		})
	}

	if cfg.TwitchEnabled() {
		a.guard(ctx, "twitch", func() {
			snap.TwitchViewers = a.lookup(ctx, "twitch", "viewers", func() (int, error) {
				return a.twitch.Viewers(ctx)
			})
			snap.TwitchFollowers = a.lookup(ctx, "twitch", "followers", func() (int, error) {
				return a.twitch.Followers(ctx)
			})
		})
	}

	a.log.InfoContext(ctx, "Fetched channel stats",
		"youtube_viewers", snap.YouTubeViewers,
		"twitch_viewers", snap.TwitchViewers,
		"youtube_subscribers", snap.YouTubeSubscribers,
		"twitch_followers", snap.TwitchFollowers)

	return snap
}

// guard runs fn and turns a panic into a logged, counted failure.
func (a *Aggregator) guard(ctx context.Context, platform string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LookupFailuresTotal.WithLabelValues(platform, "panic").Inc()
			a.log.ErrorContext(ctx, "Recovered from panic while fetching stats",
				"platform", platform, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (a *Aggregator) lookup(ctx context.Context, platform, metric string, fn func() (int, error)) int {
	n, err := fn()
	if err == nil {
		return n
	}

	kind := model.ErrorKind(err)
	metrics.LookupFailuresTotal.WithLabelValues(platform, kind).Inc()

	if errors.Is(err, model.ErrNoData) {
		a.log.DebugContext(ctx, "No data, reporting 0", "platform", platform, "metric", metric, "reason", err)
	} else {
		a.log.WarnContext(ctx, "Lookup failed, reporting 0", "platform", platform, "metric", metric, "error", err)
	}
	return 0
}

// write is one overlay update.
type write struct {
	name  string
	value int
}

// planWrites resolves bindings into overlay updates. Viewers and
// subscribers are separate pairs: when both slots of a pair name the same
// overlay it gets one write of the sum, otherwise each bound slot is
// written on its own.
func planWrites(snap model.Snapshot, b model.Bindings) []write {
	pairs := [][2]model.Slot{
		{model.SlotYouTubeViewers, model.SlotTwitchViewers},
		{model.SlotYouTubeSubs, model.SlotTwitchSubs},
	}

	var writes []write
	for _, pair := range pairs {
		first, second := b.Name(pair[0]), b.Name(pair[1])
		if first != "" && first == second {
			writes = append(writes, write{name: first, value: snap.Value(pair[0]) + snap.Value(pair[1])})
			continue
		}
		if first != "" {
			writes = append(writes, write{name: first, value: snap.Value(pair[0])})
		}
		if second != "" {
			writes = append(writes, write{name: second, value: snap.Value(pair[1])})
		}
	}
	return writes
}

// ApplyToOverlays writes snap to the overlays bound in b. A missing overlay
// is skipped; other sink failures are logged and returned together once
// every write was attempted.
func (a *Aggregator) ApplyToOverlays(ctx context.Context, snap model.Snapshot, b model.Bindings, format string) error {
	var errs []error

	for _, w := range planWrites(snap, b) {
		text := utils.FormatCount(w.value, format)

		err := a.sink.SetText(ctx, w.name, text)
		switch {
		case err == nil:
			metrics.OverlayWritesTotal.WithLabelValues("ok").Inc()
			a.log.DebugContext(ctx, "Overlay updated", "overlay", w.name, "text", text)
		case errors.Is(err, overlay.ErrNotFound):
			metrics.OverlayWritesTotal.WithLabelValues("missing").Inc()
			a.log.DebugContext(ctx, "Overlay not found, skipping", "overlay", w.name)
		default:
			metrics.OverlayWritesTotal.WithLabelValues("error").Inc()
			a.log.WarnContext(ctx, "Failed to update overlay", "overlay", w.name, "error", err)
			errs = append(errs, fmt.Errorf("overlay %s: %w", w.name, err))
		}
	}

	return errors.Join(errs...)
}
