// Package file keeps relay state in a single pretty-printed JSON document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/railsonsantospb/unifi-relay/core"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

type Options struct {
	Dir      string
	FileName string
	Logger   glog.Logger
}

// StateStore reads and writes the whole snapshot on every update. All
// access goes through one mutex so concurrent sites cannot lose updates.
type StateStore struct {
	path   string
	logger glog.Logger

	mu sync.Mutex
}

func NewStateStore(opts Options) (*StateStore, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, fmt.Errorf("file: state directory is required")
	}
	name := strings.TrimSpace(opts.FileName)
	if name == "" {
		name = core.DefaultStateFileName
	}
	return &StateStore{
		path:   filepath.Join(dir, name),
		logger: glog.Ensure(opts.Logger),
	}, nil
}

func (s *StateStore) Path() string {
	return s.path
}

// Read returns the persisted snapshot. A missing, unreadable or invalid
// file reads as empty.
func (s *StateStore) Read(ctx context.Context) core.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLenient(ctx)
}

func (s *StateStore) Write(_ context.Context, snapshot core.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSnapshot(snapshot)
}

func (s *StateStore) Load(ctx context.Context, key string) (core.StateEntry, bool, error) {
	snapshot := s.Read(ctx)
	entry, ok := snapshot[key]
	return entry, ok, nil
}

func (s *StateStore) CompareAndSwap(ctx context.Context, key string, next core.StateEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.readLenient(ctx)
	if current, ok := snapshot[key]; ok && current.Hash == next.Hash {
		return false, nil
	}
	snapshot[key] = next
	if err := s.writeSnapshot(snapshot); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateStore) readLenient(ctx context.Context) core.StateSnapshot {
	snapshot, err := s.readSnapshot()
	if err != nil {
		s.logger.WithContext(ctx).Warn("state file unreadable, starting empty", "path", s.path, "error", err)
		return core.StateSnapshot{}
	}
	return snapshot
}

func (s *StateStore) readSnapshot() (core.StateSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.StateSnapshot{}, nil
		}
		return nil, fmt.Errorf("file: read state: %w", err)
	}
	var snapshot core.StateSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("file: decode state: %w", err)
	}
	if snapshot == nil {
		snapshot = core.StateSnapshot{}
	}
	return snapshot, nil
}

// writeSnapshot replaces the file through a temp file and rename, so a
// reader never sees a partial document.
func (s *StateStore) writeSnapshot(snapshot core.StateSnapshot) error {
	if snapshot == nil {
		snapshot = core.StateSnapshot{}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("file: create state dir: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("file: create temp state: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file: write state: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file: chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("file: close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("file: replace state: %w", err)
	}
	return nil
}

var _ core.StateStore = (*StateStore)(nil)
