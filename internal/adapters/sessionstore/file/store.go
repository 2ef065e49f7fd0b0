package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/growscratch-cli/internal/adapters/sessionstore"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/gofrs/flock"
)

const (
	sessionFileMode = 0o600
	sessionDirMode  = 0o700
	tempFilePattern = ".session-*.json.tmp"
	lockSuffix      = ".lock"
)

// Store persists the session slot as a single JSON file. Writes go to a temp
// file in the same directory which is then renamed over the slot, so readers
// see either the old record or the new one. Lock holds an flock on a sibling
// ".lock" file so two gs processes never drive the slot at once.
type Store struct {
	path string
	mu   sync.RWMutex
}

var (
	_ ports.SessionStore   = (*Store)(nil)
	_ ports.SlotLocker     = (*Store)(nil)
	_ sessionstore.Pinger = (*Store)(nil)
)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve session file path: %w", err)
	}
	return &Store{path: filepath.Clean(absPath)}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Session{}, domain.ErrNoSession
		}
		return domain.Session{}, fmt.Errorf("read session file: %w", err)
	}

	session, err := sessionstore.Decode(data)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session from %s: %w", s.path, err)
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := sessionstore.Encode(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOwner(session.ID); err != nil {
		return err
	}
	return s.writeFile(data)
}

// Lock takes the cross-process lease on the slot. It does not wait for a
// lease held elsewhere.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), sessionDirMode); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	lock := flock.New(s.path + lockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock session file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ports.ErrSlotLocked, lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

// checkOwner refuses to overwrite a readable record of another session.
func (s *Store) checkOwner(id domain.SessionID) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}
	current, err := sessionstore.Decode(data)
	if err != nil {
		return nil
	}
	if current.ID != id {
		return fmt.Errorf("%w: stored %s, writing %s", ports.ErrSlotTaken, current.ID, id)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Ping checks that the session directory exists and accepts new files.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, sessionDirMode); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	check, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("check session directory: %w", err)
	}
	name := check.Name()
	_ = check.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove session directory check file: %w", err)
	}
	return nil
}

func (s *Store) writeFile(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), sessionDirMode); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := tempFile.Chmod(sessionFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp session file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	cleanup = false

	return nil
}
