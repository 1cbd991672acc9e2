package resources

import (
	"errors"
	"fmt"

	"github.com/ggoodman/webadmin-go/action"
)

var (
	// ErrNotFound reports that no resource or item exists at a path.
	ErrNotFound = errors.New("resource not found")
	// ErrMethodNotAllowed reports that a resource has no method for a verb.
	ErrMethodNotAllowed = errors.New("method not supported by this resource")
)

// resultInvalidPayload is returned for any payload that does not decode into
// the method input. The decoder detail is only logged.
var resultInvalidPayload = action.NewMessage(action.StatusBadRequest, "Invalid payload")

// Error is returned by handlers to select the result status. Message is
// sent to the client; Err is only logged.
type Error struct {
	Status  action.Status
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf returns an *Error with a formatted client-visible message.
func Errorf(status action.Status, format string, args ...any) error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// BadRequest is shorthand for Errorf(action.StatusBadRequest, ...).
func BadRequest(format string, args ...any) error {
	return Errorf(action.StatusBadRequest, format, args...)
}

// resultForError maps a handler error onto a Result. The boolean reports
// whether the error was an unexpected internal failure.
func resultForError(err error) (action.Result, bool) {
	var re *Error
	switch {
	case errors.As(err, &re):
		return action.NewMessage(re.Status, re.Message), re.Status == action.StatusInternalError
	case errors.Is(err, ErrNotFound):
		return action.NotFound, false
	case errors.Is(err, ErrMethodNotAllowed):
		return action.MethodNotAllowed, false
	default:
		return action.InternalError, true
	}
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode payload: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
