package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileStore keeps artifacts as files in one directory.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	return &FileStore{
		dir:    dir,
		logger: log.With().Str("component", "artifact-file").Logger(),
	}, nil
}

// Path returns the file an artifact name maps to.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Put writes records to a temp file in the same directory and renames it
// over the target.
func (s *FileStore) Put(ctx context.Context, name string, records []json.RawMessage) (err error) {
	var (
		data []byte
		size int
	)
	defer func() {
		recordWrite("file", err, size, len(records))
	}()

	if err := validateFileName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err = Encode(records)
	if err != nil {
		return err
	}
	size = len(data)

	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	path := s.Path(name)
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}

	s.logger.Debug().
		Str("artifact", path).
		Int("records", len(records)).
		Int("bytes", size).
		Msg("Artifact file written")
	return nil
}

// Get reads the artifact stored under name.
func (s *FileStore) Get(ctx context.Context, name string) ([]json.RawMessage, error) {
	if err := validateFileName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return Decode(data)
}

// validateFileName keeps artifacts inside the store directory.
func validateFileName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
