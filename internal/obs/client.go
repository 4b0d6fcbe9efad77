package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/Guliveer/obs-channel-stats/internal/constants"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
)

// ErrClosed is returned by calls on a closed Client.
var ErrClosed = errors.New("obs client closed")

// Client is an overlay.Sink backed by obs-websocket. It connects lazily on
// the first call and reconnects on the next call after any failure. Calls
// are serialized. A closed Client never reconnects.
type Client struct {
	url      string
	password string
	log      *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

var _ overlay.Sink = (*Client)(nil)

// NewClient returns a Client for the obs-websocket server at url.
func NewClient(url, password string, log *logger.Logger) *Client {
	return &Client{
		url:      url,
		password: password,
		log:      log.With("sink", "obs"),
	}
}

// SetText replaces the text of the input named name. An unknown input
// yields an error matching overlay.ErrNotFound.
func (c *Client) SetText(ctx context.Context, name, text string) error {
	_, err := c.Call(ctx, "SetInputSettings", SetInputSettingsData{
		InputName:     name,
		InputSettings: map[string]any{"text": text},
		Overlay:       true,
	})
	return err
}

// ListNames returns the names of all text inputs.
func (c *Client) ListNames(ctx context.Context) ([]string, error) {
	data, err := c.Call(ctx, "GetInputList", nil)
	if err != nil {
		return nil, err
	}

	var list InputList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding GetInputList response: %w", err)
	}

	var names []string
	for _, in := range list.Inputs {
		kind := in.UnversionedInputKind
		if kind == "" {
			kind = in.InputKind
		}
		if constants.TextInputKinds[kind] {
			names = append(names, in.InputName)
		}
	}
	return names, nil
}

// Call sends a request and waits for its response data.
func (c *Client) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.OBSRequestTimeout)
	defer cancel()

	resp, err := c.roundTrip(ctx, requestType, data)
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("obs request %s: %w", requestType, err)
	}

	if !resp.RequestStatus.Result {
		return nil, &RequestError{
			RequestType: requestType,
			Code:        resp.RequestStatus.Code,
			Comment:     resp.RequestStatus.Comment,
		}
	}
	return resp.ResponseData, nil
}

// Close closes the connection, if any. Later calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "closing")
	c.conn = nil
	return err
}

func (c *Client) roundTrip(ctx context.Context, requestType string, data any) (*RequestResponse, error) {
	id := uuid.NewString()
	msg, err := envelope(OpRequest, Request{RequestType: requestType, RequestID: id, RequestData: data})
	if err != nil {
		return nil, err
	}
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return nil, err
	}

	for {
		var in Message
		if err := wsjson.Read(ctx, c.conn, &in); err != nil {
			return nil, err
		}
		if in.Op != OpRequestResponse {
			continue
		}

		var resp RequestResponse
		if err := json.Unmarshal(in.D, &resp); err != nil {
			return nil, fmt.Errorf("decoding request response: %w", err)
		}
		if resp.RequestID != id {
			continue
		}
		return &resp, nil
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.OBSDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return fmt.Errorf("dialing obs-websocket %s: %w", c.url, err)
	}
	conn.SetReadLimit(1 << 20) // 1 MB

	if err := c.identify(ctx, conn); err != nil {
		conn.CloseNow()
		return err
	}

	c.conn = conn
	c.log.InfoContext(ctx, "Connected to obs-websocket", "url", c.url)
	return nil
}

func (c *Client) identify(ctx context.Context, conn *websocket.Conn) error {
	var in Message
	if err := wsjson.Read(ctx, conn, &in); err != nil {
		return fmt.Errorf("reading Hello: %w", err)
	}
	if in.Op != OpHello {
		return fmt.Errorf("expected Hello (op %d), got op %d", OpHello, in.Op)
	}

	var hello Hello
	if err := json.Unmarshal(in.D, &hello); err != nil {
		return fmt.Errorf("decoding Hello: %w", err)
	}

	ident := Identify{RPCVersion: RPCVersion}
	if hello.Authentication != nil {
		if c.password == "" {
			return errors.New("obs-websocket requires a password but none is configured")
		}
		ident.Authentication = AuthResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}

	msg, err := envelope(OpIdentify, ident)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("sending Identify: %w", err)
	}

	if err := wsjson.Read(ctx, conn, &in); err != nil {
		// The server closes with 4009 on a wrong password.
		if websocket.CloseStatus(err) == 4009 {
			return errors.New("obs-websocket authentication failed")
		}
		return fmt.Errorf("reading Identified: %w", err)
	}
	if in.Op != OpIdentified {
		return fmt.Errorf("expected Identified (op %d), got op %d", OpIdentified, in.Op)
	}

	c.log.DebugContext(ctx, "Identified with obs-websocket", "obs_websocket_version", hello.OBSWebSocketVersion)
	return nil
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	c.conn.CloseNow()
	c.conn = nil
}

// AuthResponse computes the Identify authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}
