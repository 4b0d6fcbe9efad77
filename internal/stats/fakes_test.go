package stats

import (
	"context"
	"sync"

	"github.com/Guliveer/obs-channel-stats/internal/model"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
)

type fakeTwitch struct {
	mu        sync.Mutex
	viewers   int
	followers int
	err       error
	calls     int

	started []string
	resets  int
	info    model.TwitchSession
}

func (f *fakeTwitch) Start(_ context.Context, clientID, clientSecret, login string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, clientID+"/"+clientSecret+"/"+login)
	f.info = model.TwitchSession{Enabled: clientID != "", Channel: login}
}

func (f *fakeTwitch) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.info = model.TwitchSession{}
}

func (f *fakeTwitch) Info() model.TwitchSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

func (f *fakeTwitch) Viewers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.viewers, f.err
}

func (f *fakeTwitch) Followers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.followers, f.err
}

type fakeYouTube struct {
	mu          sync.Mutex
	streamID    string
	viewers     int
	subscribers int
	err         error
	panicOn     string
	calls       int
	seenStream  []string
}

func (f *fakeYouTube) FindLiveStreamID(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.streamID == "" {
		return "", model.ErrNoData
	}
	return f.streamID, nil
}

func (f *fakeYouTube) CurrentViewers(_ context.Context, _, streamID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seenStream = append(f.seenStream, streamID)
	if f.panicOn == "viewers" {
		panic("boom")
	}
	return f.viewers, f.err
}

func (f *fakeYouTube) SubscriberCount(context.Context, string, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn == "subscribers" {
		panic("boom")
	}
	return f.subscribers, f.err
}

type setTextCall struct {
	name string
	text string
}

type fakeSink struct {
	mu     sync.Mutex
	writes []setTextCall
	fail   map[string]error
}

func (f *fakeSink) SetText(_ context.Context, name, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[name]; err != nil {
		return err
	}
	f.writes = append(f.writes, setTextCall{name: name, text: text})
	return nil
}

func (f *fakeSink) ListNames(context.Context) ([]string, error) {
	return nil, nil
}

var _ overlay.Sink = (*fakeSink)(nil)
