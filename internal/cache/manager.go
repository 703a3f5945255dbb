// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/azbin/azbin/internal/fingerprint"
	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/internal/logging"
	"github.com/azbin/azbin/pkg/platform"
)

// DirName is the directory created under the user cache or temp directory.
const DirName = "azbin"

//nolint:gochecknoglobals // Test seams, replaced in tests.
var (
	userCacheDir = os.UserCacheDir
	tempDir      = os.TempDir
	removeAll    = os.RemoveAll
)

type (
	// Manager resolves slots below one cache root for one tool.
	Manager struct {
		root   string
		tool   string
		logger *log.Logger
	}

	// Options configures a Manager.
	Options struct {
		// Root overrides the cache root (config cache.dir / AZBIN_CACHE_DIR).
		Root string
		// Tool names the per-tool directory below the root, e.g. "az".
		Tool string
		// Logger receives debug traces; nil discards them.
		Logger *log.Logger
	}
)

// ResolveRoot returns the cache root: configured when set, otherwise the
// user cache directory, otherwise the system temp directory.
func ResolveRoot(configured string) string {
	if configured != "" {
		if abs, err := filepath.Abs(configured); err == nil {
			return abs
		}
		return configured
	}
	if dir, err := userCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, DirName)
	}
	return filepath.Join(tempDir(), DirName)
}

// NewManager validates opts and returns a Manager. The directories are not
// created until Ensure.
func NewManager(opts Options) (*Manager, error) {
	if err := platform.ValidatePathComponent(opts.Tool); err != nil {
		return nil, fmt.Errorf("tool name: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		root:   ResolveRoot(opts.Root),
		tool:   opts.Tool,
		logger: logger,
	}, nil
}

// Root returns the resolved cache root.
func (m *Manager) Root() string { return m.root }

// Tool returns the tool name slots are grouped under.
func (m *Manager) Tool() string { return m.tool }

// ToolDir returns the directory holding every slot of the tool.
func (m *Manager) ToolDir() string { return filepath.Join(m.root, m.tool) }

// SlotFor returns the slot of fp. The path is a pure function of the build
// id and digest, so different builds never share a slot.
func (m *Manager) SlotFor(fp fingerprint.Fingerprint) Slot {
	name := SlotName(fp.BuildID, fp.Digest)
	return Slot{
		Dir:     filepath.Join(m.ToolDir(), name),
		Name:    name,
		BuildID: fp.BuildID,
		Digest:  fp.Digest,
	}
}

// Ensure creates the tool directory and checks that it is writable.
// Failures are classified as CacheUnwritable.
func (m *Manager) Ensure() error {
	dir := m.ToolDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return issue.New(issue.CacheUnwritable, "create cache directory", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".azbin-probe-*")
	if err != nil {
		return issue.New(issue.CacheUnwritable, "write to cache directory", dir, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return issue.New(issue.CacheUnwritable, "write to cache directory", dir, err)
	}
	if err := os.Remove(name); err != nil {
		return issue.New(issue.CacheUnwritable, "write to cache directory", dir, err)
	}
	return nil
}

// Discard removes the slot tree. The marker goes first, so a lock-free reader
// never sees a validated slot whose files are being deleted. A missing slot
// is not an error; a slot that cannot be removed is CacheCorrupt.
func (m *Manager) Discard(s Slot) error {
	m.logger.Debug("discarding slot", "slot", s.Dir)
	if err := os.Remove(s.MarkerPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return issue.New(issue.CacheCorrupt, "unpublish slot", s.MarkerPath(), err)
	}
	syncDir(s.Dir)
	if err := removeAll(s.Dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return issue.New(issue.CacheCorrupt, "remove invalid slot", s.Dir, err)
	}
	return nil
}

// Prepare discards any previous content of s and creates an empty slot
// directory. The caller must hold the slot lock.
func (m *Manager) Prepare(s Slot) error {
	if err := m.Discard(s); err != nil {
		return err
	}
	if err := os.Mkdir(s.Dir, 0o755); err != nil {
		return issue.New(issue.CacheUnwritable, "create slot", s.Dir, err)
	}
	return nil
}
