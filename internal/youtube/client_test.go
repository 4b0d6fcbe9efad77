package youtube

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/obs-channel-stats/internal/httpclient"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/model"
)

type fakeAPI struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeAPI(t *testing.T, routes map[string]http.HandlerFunc) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.URL.Query().Get("key") != "yt-key" {
			w.WriteHeader(http.StatusForbidden)
			writeJSON(w, map[string]any{"error": map[string]any{"code": 403, "message": "API key not valid"}})
			return
		}
		handler, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(f *fakeAPI) *Client {
	return NewClient(httpclient.New(2*time.Second, logger.Discard()), logger.Discard(), WithEndpoint(f.URL+"/"))
}

func liveRoutes(t *testing.T) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/youtube/v3/search": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "id", q.Get("part"))
			assert.Equal(t, "live", q.Get("eventType"))
			assert.Equal(t, "video", q.Get("type"))
			assert.Equal(t, "UC123", q.Get("channelId"))
			writeJSON(w, map[string]any{"items": []any{
				map[string]any{"id": map[string]any{"kind": "youtube#video", "videoId": "vid42"}},
			}})
		},
		"/youtube/v3/videos": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "liveStreamingDetails", r.URL.Query().Get("part"))
			assert.Equal(t, "vid42", r.URL.Query().Get("id"))
			writeJSON(w, map[string]any{"items": []any{
				map[string]any{"id": "vid42", "liveStreamingDetails": map[string]any{"concurrentViewers": "120"}},
			}})
		},
		"/youtube/v3/channels": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "statistics", r.URL.Query().Get("part"))
			assert.Equal(t, "UC123", r.URL.Query().Get("id"))
			writeJSON(w, map[string]any{"items": []any{
				map[string]any{"id": "UC123", "statistics": map[string]any{"subscriberCount": "4500"}},
			}})
		},
	}
}

func TestClient_LiveChannel(t *testing.T) {
	api := newFakeAPI(t, liveRoutes(t))
	c := newTestClient(api)

	streamID, err := c.FindLiveStreamID(t.Context(), "yt-key", "UC123")
	require.NoError(t, err)
	assert.Equal(t, "vid42", streamID)

	viewers, err := c.CurrentViewers(t.Context(), "yt-key", streamID)
	require.NoError(t, err)
	assert.Equal(t, 120, viewers)

	subs, err := c.SubscriberCount(t.Context(), "yt-key", "UC123")
	require.NoError(t, err)
	assert.Equal(t, 4500, subs)
}

func TestClient_NotLive(t *testing.T) {
	routes := liveRoutes(t)
	routes["/youtube/v3/search"] = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"items": []any{}})
	}
	api := newFakeAPI(t, routes)
	c := newTestClient(api)

	streamID, err := c.FindLiveStreamID(t.Context(), "yt-key", "UC123")
	assert.ErrorIs(t, err, model.ErrNoData)
	assert.Empty(t, streamID)

	calls := api.calls.Load()
	viewers, err := c.CurrentViewers(t.Context(), "yt-key", streamID)
	assert.ErrorIs(t, err, model.ErrNoData)
	assert.Zero(t, viewers)
	assert.Equal(t, calls, api.calls.Load(), "an empty stream ID makes no request")
}

func TestClient_MissingKeyMakesNoCalls(t *testing.T) {
	api := newFakeAPI(t, liveRoutes(t))
	c := newTestClient(api)

	_, err := c.FindLiveStreamID(t.Context(), "", "UC123")
	assert.ErrorIs(t, err, model.ErrCredentialsMissing)
	_, err = c.CurrentViewers(t.Context(), "", "vid42")
	assert.ErrorIs(t, err, model.ErrCredentialsMissing)
	_, err = c.SubscriberCount(t.Context(), "", "UC123")
	assert.ErrorIs(t, err, model.ErrCredentialsMissing)

	assert.Zero(t, api.calls.Load())
}

func TestClient_RejectedKeyIsUnavailable(t *testing.T) {
	api := newFakeAPI(t, liveRoutes(t))
	c := newTestClient(api)

	subs, err := c.SubscriberCount(t.Context(), "wrong-key", "UC123")
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.Contains(t, err.Error(), "403")
	assert.Zero(t, subs)
}

func TestClient_KeyChangeRebuildsService(t *testing.T) {
	api := newFakeAPI(t, liveRoutes(t))
	c := newTestClient(api)

	_, err := c.SubscriberCount(t.Context(), "wrong-key", "UC123")
	require.Error(t, err)

	subs, err := c.SubscriberCount(t.Context(), "yt-key", "UC123")
	require.NoError(t, err)
	assert.Equal(t, 4500, subs)
}

func TestClient_UnknownChannel(t *testing.T) {
	routes := liveRoutes(t)
	routes["/youtube/v3/channels"] = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"items": []any{}})
	}
	c := newTestClient(newFakeAPI(t, routes))

	_, err := c.SubscriberCount(t.Context(), "yt-key", "UC123")
	assert.ErrorIs(t, err, model.ErrNoData)
}

func TestClient_NetworkFailure(t *testing.T) {
	api := newFakeAPI(t, liveRoutes(t))
	c := newTestClient(api)
	api.Close()

	_, err := c.SubscriberCount(t.Context(), "yt-key", "UC123")
	assert.ErrorIs(t, err, model.ErrNetwork)
}

func TestClient_MissingChannelID(t *testing.T) {
	api := newFakeAPI(t, liveRoutes(t))
	c := newTestClient(api)

	_, err := c.FindLiveStreamID(t.Context(), "yt-key", "")
	assert.ErrorIs(t, err, model.ErrUnavailable)
	_, err = c.SubscriberCount(t.Context(), "yt-key", "")
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.Zero(t, api.calls.Load())
}
