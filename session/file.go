package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DoctorGattino/blog/config"
	"github.com/DoctorGattino/blog/types"
)

// FileStore keeps the session as JSON in a user-private file
type FileStore struct {
	path string
}

// NewFileStore creates a store at path, or at the XDG state location when path is empty
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = config.DefaultSessionPath()
	}
	return &FileStore{path: path}
}

// Path returns the session file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (types.User, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.User{}, false, nil
	}
	if err != nil {
		return types.User{}, false, fmt.Errorf("read %s: %w", s.path, err)
	}

	var env types.UserEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.User{}, false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return env.User, env.User.Token != "", nil
}

func (s *FileStore) Save(ctx context.Context, user types.User) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(types.UserEnvelope{User: user}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
