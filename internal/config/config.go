// Package config loads the vault configuration file. Loading is
// TOCTOU-safe: the file is opened with O_NOFOLLOW, then permissions
// and ownership are checked on the open descriptor before a byte is
// parsed. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/passfx/passfx/pkg/storage"
)

// FileName is the configuration file inside the vault directory.
const FileName = "config.yaml"

// Defaults and floors for the timing knobs.
const (
	DefaultAutoLockMinutes       = 5
	DefaultClipboardClearSeconds = 30
	DefaultLockoutThreshold      = 3
	DefaultMaxLockoutSeconds     = 3600

	MinClipboardClearSeconds = 5
	MinLockoutThreshold      = 1
	MinMaxLockoutSeconds     = 60
)

// Errors returned when the config file cannot be trusted.
var (
	ErrInsecurePermissions = errors.New("config: file has insecure permissions")
	ErrSymlinkRejected     = errors.New("config: file is a symlink")
	ErrNotOwnedByUser      = errors.New("config: file not owned by current user")
	ErrUnsupportedVersion  = errors.New("config: unsupported config version")
)

// Config holds the vault settings.
type Config struct {
	Version int `yaml:"version"`

	// AutoLockMinutes locks the session after this much inactivity.
	// Zero disables auto-lock.
	AutoLockMinutes int `yaml:"auto_lock_minutes"`

	// ClipboardClearSeconds is advisory for clipboard integrations;
	// the core never touches the clipboard itself.
	ClipboardClearSeconds int `yaml:"clipboard_clear_seconds"`

	// LockoutThreshold is the failed-unlock count that starts the
	// lockout window.
	LockoutThreshold int `yaml:"lockout_threshold"`

	// MaxLockoutSeconds caps the exponential lockout window.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:               1,
		AutoLockMinutes:       DefaultAutoLockMinutes,
		ClipboardClearSeconds: DefaultClipboardClearSeconds,
		LockoutThreshold:      DefaultLockoutThreshold,
		MaxLockoutSeconds:     DefaultMaxLockoutSeconds,
	}
}

// Load reads config.yaml from the vault directory. A missing file is
// not an error: the defaults apply. A symlinked, group-readable, or
// foreign-owned file is refused.
func Load(vaultDir string) (*Config, error) {
	path := filepath.Join(vaultDir, FileName)

	f, err := openNoFollow(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	defer f.Close()

	// fstat the open descriptor so the checks and the read cannot be
	// split by a file swap.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat file: %w", err)
	}
	if err := checkPermissions(info); err != nil {
		return nil, err
	}
	if err := checkOwnership(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse file: %w", err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cfg.Version)
	}

	cfg.applyFloors()
	return cfg, nil
}

// Save writes the configuration atomically with 0600 permissions.
func Save(vaultDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	return storage.AtomicWriteFile(filepath.Join(vaultDir, FileName), data)
}

// applyFloors clamps settings that would weaken the lockout or leave
// secrets on the clipboard indefinitely. Zero AutoLockMinutes is a
// deliberate opt-out and stays.
func (c *Config) applyFloors() {
	if c.AutoLockMinutes < 0 {
		c.AutoLockMinutes = DefaultAutoLockMinutes
	}
	if c.ClipboardClearSeconds < MinClipboardClearSeconds {
		c.ClipboardClearSeconds = MinClipboardClearSeconds
	}
	if c.LockoutThreshold < MinLockoutThreshold {
		c.LockoutThreshold = DefaultLockoutThreshold
	}
	if c.MaxLockoutSeconds < MinMaxLockoutSeconds {
		c.MaxLockoutSeconds = MinMaxLockoutSeconds
	}
}
