package gemini

import (
	"errors"
	"fmt"
)

// Kind classifies a failed generation call at the adapter boundary, so
// callers match on a tag instead of sniffing upstream message text.
type Kind int

const (
	// KindRemote covers network and service-side failures (quota, 5xx).
	KindRemote Kind = iota
	// KindCredential means the call was rejected for a missing or invalid
	// API key, including the "credential entity not found" signature for a
	// previously accepted key.
	KindCredential
	// KindEmptyResponse means the service returned a success envelope whose
	// body was empty or did not parse as the requested schema.
	KindEmptyResponse
	// KindVideoJobFailed means a video operation completed without
	// producing an asset address.
	KindVideoJobFailed
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindRemote when err carries
// no adapter classification.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindRemote
}

func IsCredential(err error) bool {
	return KindOf(err) == KindCredential
}
