package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the bundle as json in a single file.
type FileStore struct {
	path string
}

func NewFileStore(path string) FileStore {
	return FileStore{path: path}
}

func (s FileStore) Path() string {
	return s.path
}

func (s FileStore) Load(ctx context.Context) (Bundle, error) {
	contents, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Bundle{}, ErrNoBundle
	}
	if err != nil {
		return Bundle{}, fmt.Errorf("read session: %w", err)
	}

	var bundle Bundle
	err = json.Unmarshal(contents, &bundle)
	if err != nil {
		return Bundle{}, fmt.Errorf("decode session %s: %w", s.path, err)
	}
	if !bundle.Valid {
		return Bundle{}, ErrNoBundle
	}
	return bundle, nil
}

// Save writes the bundle to a temporary file next to the target and renames it
// over the target, a crash midway never leaves a truncated session behind.
func (s FileStore) Save(ctx context.Context, bundle Bundle) error {
	serialized, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(serialized)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	err = os.Chmod(tmp.Name(), 0600)
	if err != nil {
		return fmt.Errorf("chmod session: %w", err)
	}
	err = os.Rename(tmp.Name(), s.path)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s FileStore) Invalidate(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
