package overlay

import (
	"context"

	"github.com/Guliveer/obs-channel-stats/internal/logger"
)

// LogSink only logs the text it would have written. It is useful for a dry
// run without a host application.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink returns a sink that logs every update at info level.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) SetText(ctx context.Context, name, text string) error {
	s.log.InfoContext(ctx, "Overlay updated", "overlay", name, "text", text)
	return nil
}

func (s *LogSink) ListNames(context.Context) ([]string, error) {
	return nil, nil
}
