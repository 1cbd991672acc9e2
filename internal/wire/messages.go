// Package wire defines the JSON frames exchanged on the persistent channel.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ggoodman/webadmin-go/action"
)

// MessageType discriminates frames.
type MessageType string

const (
	// Client to server.
	AuthenticationRequest MessageType = "AUTHENTICATION_REQUEST"
	AuthenticationData    MessageType = "AUTHENTICATION_DATA"
	Action                MessageType = "ACTION"

	// Server to client.
	AuthenticationResult MessageType = "AUTHENTICATION_RESULT"
	ActionResult         MessageType = "ACTION_RESULT"
	ResourceEvent        MessageType = "RESOURCE_EVENT"
)

var (
	// ErrMalformed reports a frame that is not a JSON object of the expected shape.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownMessageType reports a messageType the server does not accept.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// ResourcePath accepts either a list of segments or a single slash
// separated string, and always encodes as a list.
type ResourcePath []string

func (p *ResourcePath) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var out ResourcePath
		for _, seg := range strings.Split(s, "/") {
			if seg != "" {
				out = append(out, seg)
			}
		}
		*p = out
		return nil
	}
	var segs []string
	if err := json.Unmarshal(b, &segs); err != nil {
		return fmt.Errorf("resourcePath must be a string or a list of strings: %w", err)
	}
	*p = segs
	return nil
}

// Inbound is a client frame.
type Inbound struct {
	Type         MessageType     `json:"messageType"`
	ResourcePath ResourcePath    `json:"resourcePath,omitempty"`
	Method       string          `json:"method,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	RequestID    *RequestID      `json:"requestId,omitempty"`
}

// Decode parses a client frame. Errors wrap ErrMalformed or
// ErrUnknownMessageType. A partially decoded frame is returned alongside
// the error when possible so the caller can echo its correlation fields.
func Decode(b []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch in.Type {
	case AuthenticationRequest, AuthenticationData, Action:
		return &in, nil
	case "":
		return &in, fmt.Errorf("%w: missing messageType", ErrMalformed)
	default:
		return &in, fmt.Errorf("%w: %q", ErrUnknownMessageType, in.Type)
	}
}

// Outbound is a server frame.
type Outbound struct {
	Type         MessageType     `json:"messageType"`
	ResourcePath ResourcePath    `json:"resourcePath,omitempty"`
	Method       string          `json:"method,omitempty"`
	RequestID    *RequestID      `json:"requestId,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// NewAuthenticationResult wraps the result of an authentication step.
func NewAuthenticationResult(res action.Result) (*Outbound, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Outbound{Type: AuthenticationResult, Data: b}, nil
}

// NewActionResult wraps res as the reply to in. in may be nil when the
// frame could not be decoded at all.
func NewActionResult(in *Inbound, res action.Result) (*Outbound, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	out := &Outbound{Type: ActionResult, Data: b}
	if in != nil {
		out.ResourcePath = in.ResourcePath
		out.Method = in.Method
		out.RequestID = in.RequestID
	}
	return out, nil
}

// NewResourceEvent builds a frame pushing data about the resource at path.
func NewResourceEvent(path []string, data json.RawMessage) *Outbound {
	return &Outbound{Type: ResourceEvent, ResourcePath: path, Data: data}
}
