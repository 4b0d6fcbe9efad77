package obs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
)

const (
	testSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	testChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

// fakeOBS is a minimal obs-websocket v5 server.
type fakeOBS struct {
	password string
	// closeAfter closes each connection after that many requests; 0 never.
	closeAfter int

	mu          sync.Mutex
	texts       map[string]string
	inputs      []Input
	connections int
}

func newFakeOBS(t *testing.T, password string) (*fakeOBS, string) {
	t.Helper()
	f := &fakeOBS{
		password: password,
		texts:    map[string]string{},
		inputs: []Input{
			{InputName: "Viewers", InputKind: "text_ft2_source_v2", UnversionedInputKind: "text_ft2_source"},
			{InputName: "Webcam", InputKind: "v4l2_input", UnversionedInputKind: "v4l2_input"},
			{InputName: "Subs", InputKind: "text_gdiplus_v3", UnversionedInputKind: "text_gdiplus"},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (f *fakeOBS) text(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[name]
}

func (f *fakeOBS) connectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections
}

func (f *fakeOBS) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{Subprotocol}})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	f.mu.Lock()
	f.connections++
	f.mu.Unlock()

	hello := Hello{OBSWebSocketVersion: "5.5.0", RPCVersion: RPCVersion}
	if f.password != "" {
		hello.Authentication = &AuthChallenge{Challenge: testChallenge, Salt: testSalt}
	}
	if !send(ctx, conn, OpHello, hello) {
		return
	}

	var in Message
	if err := wsjson.Read(ctx, conn, &in); err != nil || in.Op != OpIdentify {
		return
	}
	var ident Identify
	_ = json.Unmarshal(in.D, &ident)
	if f.password != "" && ident.Authentication != AuthResponse(f.password, testSalt, testChallenge) {
		conn.Close(4009, "Authentication failed.")
		return
	}
	if !send(ctx, conn, OpIdentified, Identified{NegotiatedRPCVersion: RPCVersion}) {
		return
	}

	handled := 0
	for {
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return
		}
		if in.Op != OpRequest {
			continue
		}

		var req struct {
			RequestType string          `json:"requestType"`
			RequestID   string          `json:"requestId"`
			RequestData json.RawMessage `json:"requestData"`
		}
		_ = json.Unmarshal(in.D, &req)

		// Noise the client must skip: an event and a response to someone else.
		send(ctx, conn, 5, map[string]any{"eventType": "CurrentProgramSceneChanged"})
		send(ctx, conn, OpRequestResponse, RequestResponse{RequestID: "other", RequestStatus: RequestStatus{Result: true, Code: 100}})

		if !send(ctx, conn, OpRequestResponse, f.handle(req.RequestType, req.RequestID, req.RequestData)) {
			return
		}

		handled++
		if f.closeAfter > 0 && handled >= f.closeAfter {
			conn.Close(websocket.StatusGoingAway, "bye")
			return
		}
	}
}

func (f *fakeOBS) handle(requestType, id string, data json.RawMessage) RequestResponse {
	resp := RequestResponse{RequestType: requestType, RequestID: id, RequestStatus: RequestStatus{Result: true, Code: 100}}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch requestType {
	case "SetInputSettings":
		var d SetInputSettingsData
		_ = json.Unmarshal(data, &d)
		known := false
		for _, in := range f.inputs {
			known = known || in.InputName == d.InputName
		}
		if !known {
			resp.RequestStatus = RequestStatus{Code: StatusResourceNotFound, Comment: "No source was found by the name of `" + d.InputName + "`."}
			return resp
		}
		f.texts[d.InputName], _ = d.InputSettings["text"].(string)
	case "GetInputList":
		resp.ResponseData, _ = json.Marshal(InputList{Inputs: f.inputs})
	default:
		resp.RequestStatus = RequestStatus{Code: 204, Comment: "unknown request type"}
	}
	return resp
}

func send(ctx context.Context, conn *websocket.Conn, op int, v any) bool {
	msg, err := envelope(op, v)
	if err != nil {
		return false
	}
	return wsjson.Write(ctx, conn, msg) == nil
}

func TestClient_SetTextWithAuth(t *testing.T) {
	fake, url := newFakeOBS(t, "supersecret")
	c := NewClient(url, "supersecret", logger.Discard())
	defer c.Close()

	require.NoError(t, c.SetText(t.Context(), "Viewers", "150"))
	require.NoError(t, c.SetText(t.Context(), "Subs", "4500"))

	assert.Equal(t, "150", fake.text("Viewers"))
	assert.Equal(t, "4500", fake.text("Subs"))
	assert.Equal(t, 1, fake.connectionCount(), "the connection is reused")
}

func TestClient_UnknownInputIsNotFound(t *testing.T) {
	_, url := newFakeOBS(t, "")
	c := NewClient(url, "", logger.Discard())
	defer c.Close()

	err := c.SetText(t.Context(), "Missing", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, overlay.ErrNotFound)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, StatusResourceNotFound, reqErr.Code)

	assert.NoError(t, c.SetText(t.Context(), "Viewers", "1"), "a failed status keeps the connection")
}

func TestClient_ListNamesFiltersTextInputs(t *testing.T) {
	_, url := newFakeOBS(t, "")
	c := NewClient(url, "", logger.Discard())
	defer c.Close()

	names, err := c.ListNames(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"Viewers", "Subs"}, names)
}

func TestClient_WrongPassword(t *testing.T) {
	_, url := newFakeOBS(t, "supersecret")
	c := NewClient(url, "wrong", logger.Discard())
	defer c.Close()

	err := c.SetText(t.Context(), "Viewers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestClient_PasswordRequired(t *testing.T) {
	_, url := newFakeOBS(t, "supersecret")
	c := NewClient(url, "", logger.Discard())
	defer c.Close()

	err := c.SetText(t.Context(), "Viewers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a password")
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	fake, url := newFakeOBS(t, "")
	fake.closeAfter = 1
	c := NewClient(url, "", logger.Discard())
	defer c.Close()

	require.NoError(t, c.SetText(t.Context(), "Viewers", "1"))
	assert.Error(t, c.SetText(t.Context(), "Viewers", "2"), "the dropped connection fails once")
	require.NoError(t, c.SetText(t.Context(), "Viewers", "3"))

	assert.Equal(t, "3", fake.text("Viewers"))
	assert.Equal(t, 2, fake.connectionCount())
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "", logger.Discard())

	err := c.SetText(t.Context(), "Viewers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialing obs-websocket")
	assert.NoError(t, c.Close())
}

func TestAuthResponse(t *testing.T) {
	// Reference values from the obs-websocket v5 protocol documentation.
	got := AuthResponse("supersecretpassword", testSalt, testChallenge)
	assert.Equal(t, "1Ct943GAT+6YQUUX47Ia/ncufilbe6+oD6lY+5kaCu4=", got)
}

func TestClient_ClosedClientDoesNotReconnect(t *testing.T) {
	fake, url := newFakeOBS(t, "")
	c := NewClient(url, "", logger.Discard())

	require.NoError(t, c.SetText(t.Context(), "Viewers", "1"))
	require.NoError(t, c.Close())

	err := c.SetText(t.Context(), "Viewers", "2")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.ListNames(t.Context())
	assert.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, "1", fake.text("Viewers"))
	assert.Equal(t, 1, fake.connectionCount())
	assert.NoError(t, c.Close())
}
