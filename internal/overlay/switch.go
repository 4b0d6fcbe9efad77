package overlay

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNoSink is returned by a Switch that has no sink installed.
var ErrNoSink = errors.New("no overlay sink configured")

// Switch forwards to a sink that can be replaced at runtime, so a settings
// change can move writes to a different host without restarting polling.
type Switch struct {
	current atomic.Pointer[sinkHolder]
}

type sinkHolder struct {
	sink Sink
}

// NewSwitch returns a Switch forwarding to sink.
func NewSwitch(sink Sink) *Switch {
	s := &Switch{}
	s.Set(sink)
	return s
}

// Set installs sink and returns the previous one, which may be nil.
func (s *Switch) Set(sink Sink) Sink {
	prev := s.current.Swap(&sinkHolder{sink: sink})
	if prev == nil {
		return nil
	}
	return prev.sink
}

// Current returns the installed sink, or nil.
func (s *Switch) Current() Sink {
	h := s.current.Load()
	if h == nil {
		return nil
	}
	return h.sink
}

func (s *Switch) SetText(ctx context.Context, name, text string) error {
	sink := s.Current()
	if sink == nil {
		return ErrNoSink
	}
	return sink.SetText(ctx, name, text)
}

func (s *Switch) ListNames(ctx context.Context) ([]string, error) {
	sink := s.Current()
	if sink == nil {
		return nil, ErrNoSink
	}
	return sink.ListNames(ctx)
}
