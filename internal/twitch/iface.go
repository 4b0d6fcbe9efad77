package twitch

import (
	"context"

	"github.com/Guliveer/obs-channel-stats/internal/model"
)

// API is the Twitch surface used by the polling session.
// *Session satisfies this interface.
type API interface {
	Start(ctx context.Context, clientID, clientSecret, login string)
	Reset()
	Info() model.TwitchSession
	Viewers(ctx context.Context) (int, error)
	Followers(ctx context.Context) (int, error)
}

var _ API = (*Session)(nil)
