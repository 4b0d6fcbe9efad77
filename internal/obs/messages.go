// Package obs implements the subset of the obs-websocket v5 protocol needed
// to update text sources: the Hello/Identify handshake with optional
// challenge authentication, and request/response calls.
package obs

import (
	"encoding/json"
	"fmt"

	"github.com/Guliveer/obs-channel-stats/internal/overlay"
)

// obs-websocket v5 opcodes.
const (
	OpHello           = 0
	OpIdentify        = 1
	OpIdentified      = 2
	OpRequest         = 6
	OpRequestResponse = 7
)

// RPCVersion is the obs-websocket RPC version requested on Identify.
const RPCVersion = 1

// Subprotocol selects the JSON message encoding.
const Subprotocol = "obswebsocket.json"

// StatusResourceNotFound is the request status code for an unknown input.
const StatusResourceNotFound = 600

// Message is the envelope of every obs-websocket message.
type Message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// Hello is sent by the server right after the connection opens.
type Hello struct {
	OBSWebSocketVersion string         `json:"obsWebSocketVersion"`
	RPCVersion          int            `json:"rpcVersion"`
	Authentication      *AuthChallenge `json:"authentication,omitempty"`
}

// AuthChallenge is present in Hello when the server requires a password.
type AuthChallenge struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

// Identify answers Hello.
type Identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

// Identified confirms a successful Identify.
type Identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

// Request is a client request.
type Request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

// RequestResponse answers a Request with the same RequestID.
type RequestResponse struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus RequestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

// RequestStatus reports whether a request succeeded.
type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// SetInputSettingsData is the payload of a SetInputSettings request.
type SetInputSettingsData struct {
	InputName     string         `json:"inputName"`
	InputSettings map[string]any `json:"inputSettings"`
	Overlay       bool           `json:"overlay"`
}

// InputList is the response of GetInputList.
type InputList struct {
	Inputs []Input `json:"inputs"`
}

// Input describes one OBS input.
type Input struct {
	InputName            string `json:"inputName"`
	InputKind            string `json:"inputKind"`
	UnversionedInputKind string `json:"unversionedInputKind"`
}

// RequestError is a request the server answered with a failed status.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("obs request %s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
}

// Is matches overlay.ErrNotFound for an unknown input.
func (e *RequestError) Is(target error) bool {
	return target == overlay.ErrNotFound && e.Code == StatusResourceNotFound
}

func envelope(op int, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Op: op, D: data}, nil
}
