package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Status is the outcome category of an action. Its JSON form is the
// upper-case name (e.g. "ACTION_NOT_ALLOWED").
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusUnauthorized
	StatusActionNotAllowed
	StatusNotFound
	StatusConflict
	StatusInternalError
)

var statusNames = map[Status]string{
	StatusOK:               "OK",
	StatusBadRequest:       "BAD_REQUEST",
	StatusUnauthorized:     "UNAUTHORIZED",
	StatusActionNotAllowed: "ACTION_NOT_ALLOWED",
	StatusNotFound:         "NOT_FOUND",
	StatusConflict:         "CONFLICT",
	StatusInternalError:    "INTERNAL_ERROR",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HTTPStatus maps the status onto the closest HTTP response code.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusActionNotAllowed:
		return http.StatusMethodNotAllowed
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s Status) MarshalText() ([]byte, error) {
	n, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(n), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for k, v := range statusNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// Result is the uniform, immutable outcome of any operation reachable
// from a client. A Result carries either a message or a payload.
type Result struct {
	status  Status
	message string
	payload json.RawMessage
}

// Reusable results for common failures.
var (
	NotFound         = NewMessage(StatusNotFound, "Resource not found")
	MethodNotAllowed = NewMessage(StatusActionNotAllowed, "Method not supported by this resource")
	Unauthorized     = NewMessage(StatusUnauthorized, "Insufficient permissions")
	InternalError    = NewMessage(StatusInternalError, "Internal server error")
)

// OK returns a successful result with neither message nor payload.
func OK() Result { return Result{status: StatusOK} }

// New returns a result with only a status.
func New(status Status) Result { return Result{status: status} }

// NewMessage returns a result carrying a human-readable message.
func NewMessage(status Status, message string) Result {
	return Result{status: status, message: message}
}

// Payload returns a successful result carrying v serialized as JSON. If v
// cannot be serialized the result is InternalError.
func Payload(v any) Result {
	if v == nil {
		return OK()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return InternalError
	}
	return Result{status: StatusOK, payload: b}
}

func (r Result) Status() Status  { return r.status }
func (r Result) Message() string { return r.message }

// Payload returns a copy of the encoded payload, or nil if there is none.
func (r Result) Payload() json.RawMessage { return bytes.Clone(r.payload) }

// HasPayload reports whether the result carries structured data.
func (r Result) HasPayload() bool { return len(r.payload) > 0 }

// DecodePayload unmarshals the payload into v.
func (r Result) DecodePayload(v any) error {
	if len(r.payload) == 0 {
		return fmt.Errorf("result has no payload")
	}
	return json.Unmarshal(r.payload, v)
}

type resultJSON struct {
	Status  Status          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{Status: r.status, Message: r.message, Data: r.payload})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var wire resultJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*r = Result{status: wire.Status, message: wire.Message, payload: wire.Data}
	return nil
}

func (r Result) String() string {
	if r.message != "" {
		return r.status.String() + ": " + r.message
	}
	return r.status.String()
}
