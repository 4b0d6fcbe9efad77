package main

import (
	"io"

	"github.com/Guliveer/obs-channel-stats/internal/config"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/obs"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
	"github.com/Guliveer/obs-channel-stats/internal/scheduler"
)

func newSink(cfg config.SinkConfig, log *logger.Logger) (overlay.Sink, error) {
	switch cfg.Type {
	case config.SinkFile:
		return overlay.NewFileSink(cfg.File.Dir)
	case config.SinkLog:
		return overlay.NewLogSink(log), nil
	default:
		return obs.NewClient(cfg.OBS.URL, cfg.OBS.Password, log), nil
	}
}

func closeSink(sink overlay.Sink, log *logger.Logger) {
	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Debug("Closing overlay sink", "error", err)
		}
	}
}

// applySettingsChange swaps the overlay sink when its settings changed.
// Credentials and channels are only read at session start, so a running
// session keeps its old values until polling is restarted.
func applySettingsChange(old, next *config.Settings, sinks *overlay.Switch, sched *scheduler.Scheduler, log *logger.Logger) {
	if old.Sink != next.Sink {
		sink, err := newSink(next.Sink, log)
		if err != nil {
			log.Error("Failed to switch overlay sink, keeping the previous one", "type", next.Sink.Type, "error", err)
		} else {
			closeSink(sinks.Set(sink), log)
			log.Info("Overlay sink switched", "type", next.Sink.Type)
		}
	}

	if !sched.Running() {
		return
	}
	if old.Twitch != next.Twitch || old.YouTube.ChannelID != next.YouTube.ChannelID {
		log.Info("Channel or credential settings changed, restart polling to apply them")
	}
	if old.YouTube.APIKey != next.YouTube.APIKey {
		log.Info("YouTube API key changed, restart polling to re-resolve the live stream")
	}
}
