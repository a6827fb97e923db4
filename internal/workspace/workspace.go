package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Manager owns the per-session working directories under a single
// root. Each session gets exactly one directory, created before its
// first stage runs and removed on failure, after first retrieval, or
// by Sweep once it outlives the max age.
type Manager struct {
	root   string
	logger *slog.Logger
}

func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Root returns the directory all workspaces live under.
func (m *Manager) Root() string { return m.root }

// Create allocates the directory for a session id and returns its path.
func (m *Manager) Create(id string) (string, error) {
	dir, err := m.Path(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", id, err)
	}
	return dir, nil
}

// Path returns the directory for a session id without creating it. It
// rejects ids that would escape the root.
func (m *Manager) Path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid workspace id %q", id)
	}
	return filepath.Join(m.root, id), nil
}

// FilePath resolves a named artifact inside a session workspace. The
// filename must be a bare name; anything containing a path separator
// is rejected before touching the filesystem. Returns os.ErrNotExist
// when either the workspace or the file is gone.
func (m *Manager) FilePath(id, filename string) (string, error) {
	dir, err := m.Path(id)
	if err != nil {
		return "", err
	}
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	full := filepath.Join(dir, filename)
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}

// Destroy removes a session workspace and everything in it. Destroying
// an absent workspace is not an error.
func (m *Manager) Destroy(id string) error {
	dir, err := m.Path(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Info("workspace_destroyed", "session_id", id)
	}
	return nil
}

// Sweep removes every workspace directory strictly older than maxAge,
// regardless of the owning session's status, and returns the count
// removed. Age is judged by the directory's modification time.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.RemoveAll(filepath.Join(m.root, e.Name())); err == nil {
				removed++
			}
		}
	}
	if m.logger != nil && removed > 0 {
		m.logger.Info("workspaces_swept", "removed", removed)
	}
	return removed, nil
}
