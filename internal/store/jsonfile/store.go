// Package jsonfile provides JSON file-based persistence for local client
// state.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hay-kot/huddle/internal/core/auth"
)

// CredentialsFile is the root JSON structure stored on disk.
type CredentialsFile struct {
	User *auth.User `json:"user,omitempty"`
}

// UserStore implements auth.Store using a JSON file readable only by its
// owner.
type UserStore struct {
	path string
	mu   sync.RWMutex
}

var _ auth.Store = (*UserStore)(nil)

// NewUserStore creates a new credentials store at the given path.
func NewUserStore(path string) *UserStore {
	return &UserStore{path: path}
}

// Path returns the file backing the store.
func (s *UserStore) Path() string {
	return s.path
}

// Load returns the stored user. Returns auth.ErrNotLoggedIn if none is stored.
func (s *UserStore) Load(ctx context.Context) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var file CredentialsFile
	err := s.withSharedLock(func() error {
		var err error
		file, err = s.load()
		return err
	})
	if err != nil {
		return auth.User{}, err
	}
	if file.User == nil {
		return auth.User{}, auth.ErrNotLoggedIn
	}
	return *file.User, nil
}

// Save replaces the stored user.
func (s *UserStore) Save(ctx context.Context, u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(func() error {
		return s.save(CredentialsFile{User: &u})
	})
}

// Clear removes the credentials file. Clearing an empty store is a no-op.
func (s *UserStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove credentials file: %w", err)
		}
		return nil
	})
}

// lockPath returns the path to the lock file.
func (s *UserStore) lockPath() string {
	return s.path + ".lock"
}

// withSharedLock runs fn while holding a shared file lock. Several
// processes may hold it at once.
func (s *UserStore) withSharedLock(fn func() error) error {
	return s.withFileLock(syscall.LOCK_SH, fn)
}

// withExclusiveLock runs fn while holding an exclusive file lock.
func (s *UserStore) withExclusiveLock(fn func() error) error {
	return s.withFileLock(syscall.LOCK_EX, fn)
}

func (s *UserStore) withFileLock(lockType int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// load reads the credentials file from disk.
// Returns an empty CredentialsFile if the file doesn't exist.
func (s *UserStore) load() (CredentialsFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CredentialsFile{}, nil
		}
		return CredentialsFile{}, fmt.Errorf("read credentials file: %w", err)
	}

	if len(data) == 0 {
		return CredentialsFile{}, nil
	}

	var file CredentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return CredentialsFile{}, fmt.Errorf("parse credentials file: %w", err)
	}

	return file, nil
}

// save writes the credentials file to disk atomically.
// Uses write-to-temp-then-rename to prevent corruption from interrupted writes.
func (s *UserStore) save(file CredentialsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
