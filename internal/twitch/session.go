// Package twitch manages the Twitch Helix session used for viewer and
// follower lookups: a client-credentials app token and the broadcaster ID
// of the watched channel, both cached from session start until the next
// restart.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nicklaw5/helix/v2"

	"github.com/Guliveer/obs-channel-stats/internal/constants"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/metrics"
	"github.com/Guliveer/obs-channel-stats/internal/model"
)

// Token is an app access token from the client-credentials exchange.
type Token struct {
	AccessToken string
	// ExpiresAt is zero when the exchange did not report a lifetime.
	ExpiresAt time.Time
}

// Session caches the Twitch auth artifacts of one polling session.
type Session struct {
	httpClient helix.HTTPClient
	clock      clockwork.Clock
	log        *logger.Logger

	mu            sync.Mutex
	clientID      string
	clientSecret  string
	login         string
	token         Token
	broadcasterID string
	// refreshable is set once a token was acquired in this session. Only
	// then is an expired or rejected token re-acquired automatically.
	refreshable bool
}

// NewSession creates an empty Session. httpClient is usually the shared
// instrumented client.
func NewSession(httpClient helix.HTTPClient, clock clockwork.Clock, log *logger.Logger) *Session {
	return &Session{
		httpClient: httpClient,
		clock:      clock,
		log:        log.With("platform", "twitch"),
	}
}

// Start discards any previous session state, then acquires an app token and
// resolves the broadcaster ID of login. Both steps are best effort: a
// failure is logged and leaves the corresponding field empty, so lookups
// report 0 until the next start.
func (s *Session) Start(ctx context.Context, clientID, clientSecret, login string) {
	s.Reset()

	if clientID == "" || clientSecret == "" {
		s.log.DebugContext(ctx, "Twitch credentials not configured, skipping session setup")
		return
	}

	s.mu.Lock()
	s.clientID = clientID
	s.clientSecret = clientSecret
	s.login = login
	s.mu.Unlock()

	token, err := s.AcquireToken(ctx, clientID, clientSecret)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to acquire Twitch app access token", "error", err)
		return
	}

	s.mu.Lock()
	s.token = token
	s.refreshable = true
	s.mu.Unlock()

	if login == "" {
		s.log.WarnContext(ctx, "Twitch channel not configured, follower count unavailable")
		return
	}

	id, err := s.ResolveBroadcasterID(ctx, clientID, token.AccessToken, login)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to resolve Twitch broadcaster ID", "channel", login, "error", err)
		return
	}

	s.mu.Lock()
	s.broadcasterID = id
	s.mu.Unlock()

	s.log.InfoContext(ctx, "Twitch session started", "channel", login, "broadcaster_id", id)
}

// Reset clears every cached artifact.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clientID = ""
	s.clientSecret = ""
	s.login = ""
	s.token = Token{}
	s.broadcasterID = ""
	s.refreshable = false
}

// Info describes the cached session without exposing the token.
func (s *Session) Info() model.TwitchSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.TwitchSession{
		Enabled:        s.clientID != "" && s.clientSecret != "",
		Channel:        s.login,
		HasToken:       s.token.AccessToken != "",
		TokenExpiresAt: s.token.ExpiresAt,
		BroadcasterID:  s.broadcasterID,
	}
}

// AcquireToken performs the client-credentials exchange.
func (s *Session) AcquireToken(ctx context.Context, clientID, clientSecret string) (Token, error) {
	if clientID == "" || clientSecret == "" {
		return Token{}, model.ErrCredentialsMissing
	}

	client, err := s.newClient(clientID, clientSecret, "")
	if err != nil {
		return Token{}, err
	}

	resp, err := client.RequestAppAccessToken(nil)
	if err != nil {
		metrics.TwitchTokenRequestsTotal.WithLabelValues("error").Inc()
		return Token{}, fmt.Errorf("%w: requesting app access token: %w", model.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.TwitchTokenRequestsTotal.WithLabelValues("error").Inc()
		return Token{}, fmt.Errorf("%w: token endpoint returned %d: %s", model.ErrUnavailable, resp.StatusCode, resp.ErrorMessage)
	}
	if resp.Data.AccessToken == "" {
		metrics.TwitchTokenRequestsTotal.WithLabelValues("error").Inc()
		return Token{}, fmt.Errorf("%w: token endpoint returned no access_token", model.ErrUnavailable)
	}

	metrics.TwitchTokenRequestsTotal.WithLabelValues("ok").Inc()

	token := Token{AccessToken: resp.Data.AccessToken}
	if resp.Data.ExpiresIn > 0 {
		token.ExpiresAt = s.clock.Now().Add(time.Duration(resp.Data.ExpiresIn) * time.Second)
	}
	s.log.DebugContext(ctx, "Acquired Twitch app access token", "expires_at", token.ExpiresAt)
	return token, nil
}

// ResolveBroadcasterID looks up the numeric user ID of login.
func (s *Session) ResolveBroadcasterID(ctx context.Context, clientID, accessToken, login string) (string, error) {
	if accessToken == "" {
		return "", fmt.Errorf("%w: no access token", model.ErrUnavailable)
	}

	client, err := s.newClient(clientID, "", accessToken)
	if err != nil {
		return "", err
	}

	resp, err := client.GetUsers(&helix.UsersParams{Logins: []string{login}})
	if err != nil {
		return "", fmt.Errorf("%w: getting user %s: %w", model.ErrNetwork, login, err)
	}
	if err := statusError(resp.StatusCode, resp.ErrorMessage); err != nil {
		return "", err
	}
	if len(resp.Data.Users) == 0 {
		return "", fmt.Errorf("%w: no user named %s", model.ErrNoData, login)
	}

	s.log.DebugContext(ctx, "Resolved Twitch broadcaster ID", "channel", login, "broadcaster_id", resp.Data.Users[0].ID)
	return resp.Data.Users[0].ID, nil
}

// Viewers returns the live viewer count of the session's channel. An
// offline channel yields 0 and a nil error.
func (s *Session) Viewers(ctx context.Context) (int, error) {
	client, err := s.authorizedClient(ctx)
	if err != nil {
		return 0, err
	}

	login := s.Info().Channel
	if login == "" {
		return 0, fmt.Errorf("%w: no channel configured", model.ErrUnavailable)
	}

	resp, err := client.GetStreams(&helix.StreamsParams{UserLogins: []string{login}})
	if err != nil {
		return 0, fmt.Errorf("%w: getting streams: %w", model.ErrNetwork, err)
	}
	if err := s.checkStatus(ctx, resp.StatusCode, resp.ErrorMessage); err != nil {
		return 0, err
	}
	if len(resp.Data.Streams) == 0 {
		return 0, nil
	}
	return resp.Data.Streams[0].ViewerCount, nil
}

// Followers returns the follower total of the session's broadcaster.
func (s *Session) Followers(ctx context.Context) (int, error) {
	client, err := s.authorizedClient(ctx)
	if err != nil {
		return 0, err
	}

	broadcasterID := s.Info().BroadcasterID
	if broadcasterID == "" {
		return 0, fmt.Errorf("%w: broadcaster ID not resolved", model.ErrUnavailable)
	}

	resp, err := client.GetChannelFollows(&helix.GetChannelFollowsParams{BroadcasterID: broadcasterID})
	if err != nil {
		return 0, fmt.Errorf("%w: getting channel followers: %w", model.ErrNetwork, err)
	}
	if err := s.checkStatus(ctx, resp.StatusCode, resp.ErrorMessage); err != nil {
		return 0, err
	}
	return resp.Data.Total, nil
}

// authorizedClient returns a helix client carrying a usable app token,
// re-acquiring the token first when it expired or was rejected.
func (s *Session) authorizedClient(ctx context.Context) (*helix.Client, error) {
	s.mu.Lock()
	clientID, clientSecret := s.clientID, s.clientSecret
	token, refreshable := s.token, s.refreshable
	s.mu.Unlock()

	if clientID == "" || clientSecret == "" {
		return nil, model.ErrCredentialsMissing
	}

	if refreshable && s.stale(token) {
		s.log.InfoContext(ctx, "Twitch app access token expired, requesting a new one")
		fresh, err := s.AcquireToken(ctx, clientID, clientSecret)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.token = fresh
		s.mu.Unlock()
		token = fresh
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", model.ErrUnavailable)
	}
	return s.newClient(clientID, "", token.AccessToken)
}

func (s *Session) stale(token Token) bool {
	if token.AccessToken == "" {
		return true
	}
	if token.ExpiresAt.IsZero() {
		return false
	}
	return !s.clock.Now().Before(token.ExpiresAt.Add(-constants.TokenRefreshMargin))
}

// checkStatus maps a non-2xx Helix status to an error. A 401 drops the
// cached token so the next call re-acquires it.
func (s *Session) checkStatus(ctx context.Context, status int, message string) error {
	err := statusError(status, message)
	if status == http.StatusUnauthorized {
		s.log.WarnContext(ctx, "Twitch rejected the app access token", "error", err)
		s.mu.Lock()
		s.token = Token{}
		s.mu.Unlock()
	}
	return err
}

func statusError(status int, message string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return fmt.Errorf("%w: helix returned %d: %s", model.ErrUnavailable, status, message)
}

func (s *Session) newClient(clientID, clientSecret, accessToken string) (*helix.Client, error) {
	client, err := helix.NewClient(&helix.Options{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		AppAccessToken: accessToken,
		HTTPClient:     s.httpClient,
	})
	if err != nil {
		return nil, errors.Join(model.ErrUnavailable, fmt.Errorf("creating helix client: %w", err))
	}
	return client, nil
}
