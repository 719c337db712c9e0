package upload

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrReadFailure means the file could not be turned into a payload.
	ErrReadFailure = errors.New("upload: read failure")
	// ErrTransportFailure means the transport could not deliver the payload.
	ErrTransportFailure = errors.New("upload: transport failure")
	// ErrAborted means the upload was cancelled by the host. It is not a
	// failure and callers should not surface it to users as one.
	ErrAborted = errors.New("upload: aborted")
	// ErrAlreadyStarted is returned by a second Upload call on one adapter.
	ErrAlreadyStarted = errors.New("upload: already started")
)

// Error carries one of the sentinel kinds plus the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func readError(err error) error {
	return classify(ErrReadFailure, err)
}

func transportError(err error) error {
	return classify(ErrTransportFailure, err)
}

func classify(kind, err error) error {
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	return &Error{Kind: kind, Err: err}
}

// IsAborted reports whether err stems from a host cancellation rather
// than a genuine failure.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}
