package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/workspace"
)

// Store persists sessions as one JSON file per session id. Writes are
// atomic via a temporary file so a crash mid-save never leaves a truncated
// record behind.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates the persistence directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session store directory %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logging.ForComponent("session-store"),
	}, nil
}

func (st *Store) pathFor(id string) (string, error) {
	if err := workspace.ValidateSessionID(id); err != nil {
		return "", err
	}
	return filepath.Join(st.dir, id+".json"), nil
}

// Save writes the session's current state to disk.
func (st *Store) Save(s *Session) error {
	path, err := st.pathFor(s.ID())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.toRecord(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID(), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename session file %s: %w", path, err)
	}
	return nil
}

// LoadAll reads every persisted session. Corrupt or unreadable files are
// skipped with a warning so one bad record never blocks startup.
func (st *Store) LoadAll() ([]*Session, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session store %s: %w", st.dir, err)
	}
	var out []*Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(st.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			st.logger.Warnf("skipping unreadable session file %s: %v", path, err)
			continue
		}
		var r record
		if err := json.Unmarshal(data, &r); err != nil || r.ID == "" {
			st.logger.Warnf("skipping corrupt session file %s: %v", path, err)
			continue
		}
		out = append(out, fromRecord(&r))
	}
	return out, nil
}

// Remove deletes the session's file. Removing a session that was never
// saved is a no-op.
func (st *Store) Remove(id string) error {
	path, err := st.pathFor(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file %s: %w", path, err)
	}
	return nil
}
