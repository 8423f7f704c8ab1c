package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/types"
)

// WriteMode selects how a Write interacts with files already on disk.
type WriteMode string

const (
	// ModeReplace discards the previous file set and stores the new one.
	ModeReplace WriteMode = "replace"

	// ModeMerge overlays the new files on the previous set, overwriting
	// paths that appear in both and leaving the rest untouched.
	ModeMerge WriteMode = "merge"
)

// Store hands out per-session workspace handles rooted under a single
// directory. Handles are cached so concurrent callers for the same session
// share one lock.
type Store struct {
	root   string
	ignore *IgnoreMatcher
	logger *logging.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewStore creates a store rooted at root, creating the directory if needed.
func NewStore(root string, ignorePatterns []string) (*Store, error) {
	matcher, err := NewIgnoreMatcher(ignorePatterns)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	return &Store{
		root:    root,
		ignore:  matcher,
		logger:  logging.ForComponent("workspace"),
		handles: make(map[string]*Handle),
	}, nil
}

// Root returns the directory all session workspaces live under.
func (s *Store) Root() string {
	return s.root
}

// Initialize creates the workspace directory for a session, seeds the
// template icons, and returns its handle. Calling it again for the same
// session returns the same handle without disturbing existing files.
func (s *Store) Initialize(sessionID string) (*Handle, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[sessionID]; ok {
		return h, nil
	}

	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session workspace: %w", err)
	}
	if err := seedIcons(dir); err != nil {
		return nil, err
	}

	h := &Handle{sessionID: sessionID, dir: dir, ignore: s.ignore}
	s.handles[sessionID] = h
	s.logger.Infof("initialized workspace for session %s at %s", sessionID, dir)
	return h, nil
}

// Handle returns the cached handle for a session, or an error if the session
// workspace was never initialized.
func (s *Store) Handle(sessionID string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[sessionID]
	if !ok {
		return nil, fmt.Errorf("workspace for session %s not initialized", sessionID)
	}
	return h, nil
}

// Discard removes a session's workspace directory and forgets its handle.
func (s *Store) Discard(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	h, ok := s.handles[sessionID]
	delete(s.handles, sessionID)
	s.mu.Unlock()

	dir := filepath.Join(s.root, sessionID)
	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		dir = h.dir
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing session workspace: %w", err)
	}
	return nil
}

// Handle is the read/write surface for one session's workspace directory.
// Writes take the exclusive lock and reads take the shared lock, so a reader
// never observes a half-applied write.
type Handle struct {
	sessionID string
	dir       string
	ignore    *IgnoreMatcher
	mu        sync.RWMutex
}

// Dir returns the absolute path of the session workspace, used as the working
// directory for generation runs.
func (h *Handle) Dir() string {
	return h.dir
}

// SessionID returns the owning session's identifier.
func (h *Handle) SessionID() string {
	return h.sessionID
}

// Write stores a file set. In ModeReplace the previous visible files are
// removed first, except the seeded template icons; in ModeMerge only the
// given paths are touched. Each file lands via a temp-file rename so partial
// content is never visible.
func (h *Handle) Write(files types.FileMap, mode WriteMode) error {
	for path := range files {
		if err := ValidateRelPath(path); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if mode == ModeReplace {
		existing, err := h.walk()
		if err != nil {
			return err
		}
		for _, rel := range existing {
			if IsTemplateIcon(rel) {
				continue
			}
			if _, keep := files[rel]; keep {
				continue
			}
			if err := os.Remove(filepath.Join(h.dir, rel)); err != nil {
				return fmt.Errorf("removing %s: %w", rel, err)
			}
		}
	}

	for path, content := range files {
		dst := filepath.Join(h.dir, filepath.FromSlash(path))
		if err := writeFileAtomic(dst, []byte(content)); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// Read returns the full visible file set, ignore patterns applied.
func (h *Handle) Read() (types.FileMap, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	paths, err := h.walk()
	if err != nil {
		return nil, err
	}
	files := make(types.FileMap, len(paths))
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(h.dir, rel))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		files[rel] = string(data)
	}
	return files, nil
}

// ListFiles returns the visible file paths in lexicographic order.
func (h *Handle) ListFiles() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.walk()
}

// walk collects visible relative paths, sorted. Callers hold at least the
// read lock.
func (h *Handle) walk() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(h.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == h.dir {
			return nil
		}
		rel, err := filepath.Rel(h.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if h.ignore.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	// WalkDir visits entries in lexical order per directory, but nested
	// paths interleave with siblings, so sort the flattened list.
	sort.Strings(paths)
	return paths, nil
}

func writeFileAtomic(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}
