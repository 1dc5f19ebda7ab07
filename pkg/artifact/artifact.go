package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates no artifact is stored under the requested name.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidArtifact indicates stored data is not a JSON array.
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Store writes and reads artifacts by name.
type Store interface {
	// Put overwrites the artifact stored under name.
	Put(ctx context.Context, name string, records []json.RawMessage) error

	// Get returns the records of the artifact stored under name.
	Get(ctx context.Context, name string) ([]json.RawMessage, error)
}

// Meta describes a stored artifact.
type Meta struct {
	Name      string    `json:"name"`
	Records   int       `json:"records"`
	Bytes     int       `json:"bytes"`
	WrittenAt time.Time `json:"written_at"`
}

// Encode renders records as an indented JSON array. A nil or empty slice
// encodes as [].
func Encode(records []json.RawMessage) ([]byte, error) {
	if len(records) == 0 {
		return []byte("[]"), nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// Decode parses an artifact back into records.
func Decode(data []byte) ([]json.RawMessage, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return nil, fmt.Errorf("%w: not a JSON array", ErrInvalidArtifact)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// validateName rejects names that cannot address an artifact.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name is required")
	}
	return nil
}
