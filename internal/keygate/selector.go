package keygate

import (
	"context"
	"errors"
)

// StaticSelector backs the gate with a fixed credential from the
// environment. Non-interactive: when the key is missing, selection fails
// and the gate stays absent until the process restarts with a key.
type StaticSelector struct {
	Key string
}

func (s StaticSelector) HasSelectedKey(ctx context.Context) (bool, error) {
	return s.Key != "", nil
}

func (s StaticSelector) OpenSelectKey(ctx context.Context) error {
	if s.Key == "" {
		return errors.New("GEMINI_API_KEY is not set")
	}
	return nil
}
