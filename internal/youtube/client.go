// Package youtube queries the YouTube Data API v3 for the live stream of a
// channel, its concurrent viewers, and the channel's subscriber count.
// Every call is read-only and authenticated with an API key.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/Guliveer/obs-channel-stats/internal/httpclient"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/model"
)

// Client wraps the generated Data API service. The service is rebuilt
// whenever the API key changes.
type Client struct {
	httpClient *http.Client
	endpoint   string
	log        *logger.Logger

	mu     sync.Mutex
	apiKey string
	svc    *yt.Service
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API base URL (e.g. "http://127.0.0.1:1234/").
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// NewClient creates a Client that sends requests through httpClient.
func NewClient(httpClient *http.Client, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		log:        log.With("platform", "youtube"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindLiveStreamID returns the video ID of the channel's ongoing live
// stream. It costs 100 quota units, so callers resolve it once per session.
func (c *Client) FindLiveStreamID(ctx context.Context, apiKey, channelID string) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("%w: no channel ID configured", model.ErrUnavailable)
	}

	svc, err := c.service(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("searching live streams", err)
	}

	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			c.log.InfoContext(ctx, "Ongoing YouTube live stream found", "channel", channelID, "stream_id", item.Id.VideoId)
			return item.Id.VideoId, nil
		}
	}

	c.log.InfoContext(ctx, "No ongoing live stream found on YouTube channel", "channel", channelID)
	return "", fmt.Errorf("%w: channel %s is not live", model.ErrNoData, channelID)
}

// CurrentViewers returns the concurrent viewers of the live stream streamID.
func (c *Client) CurrentViewers(ctx context.Context, apiKey, streamID string) (int, error) {
	if streamID == "" {
		return 0, fmt.Errorf("%w: no live stream", model.ErrNoData)
	}

	svc, err := c.service(ctx, apiKey)
	if err != nil {
		return 0, err
	}

	resp, err := svc.Videos.List([]string{"liveStreamingDetails"}).
		Id(streamID).
		Context(ctx).
		Do()
	if err != nil {
		return 0, classify("listing video", err)
	}
	if len(resp.Items) == 0 {
		return 0, fmt.Errorf("%w: video %s not found", model.ErrNoData, streamID)
	}

	details := resp.Items[0].LiveStreamingDetails
	if details == nil {
		return 0, fmt.Errorf("%w: video %s has no live streaming details", model.ErrNoData, streamID)
	}
	return int(details.ConcurrentViewers), nil
}

// SubscriberCount returns the public subscriber count of channelID.
func (c *Client) SubscriberCount(ctx context.Context, apiKey, channelID string) (int, error) {
	if channelID == "" {
		return 0, fmt.Errorf("%w: no channel ID configured", model.ErrUnavailable)
	}

	svc, err := c.service(ctx, apiKey)
	if err != nil {
		return 0, err
	}

	resp, err := svc.Channels.List([]string{"statistics"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return 0, classify("listing channel", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return 0, fmt.Errorf("%w: channel %s not found", model.ErrNoData, channelID)
	}
	return int(resp.Items[0].Statistics.SubscriberCount), nil
}

func (c *Client) service(ctx context.Context, apiKey string) (*yt.Service, error) {
	if apiKey == "" {
		return nil, model.ErrCredentialsMissing
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil && c.apiKey == apiKey {
		return c.svc, nil
	}

	opts := []option.ClientOption{
		option.WithHTTPClient(httpclient.WithAPIKey(c.httpClient, apiKey)),
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Join(model.ErrUnavailable, fmt.Errorf("creating youtube service: %w", err))
	}

	c.apiKey = apiKey
	c.svc = svc
	return svc, nil
}

// classify keeps transport failures as model.ErrNetwork and maps API
// errors and undecodable bodies to model.ErrUnavailable.
func classify(op string, err error) error {
	if errors.Is(err, model.ErrNetwork) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s: status %d: %s", model.ErrUnavailable, op, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrUnavailable, op, err)
}
