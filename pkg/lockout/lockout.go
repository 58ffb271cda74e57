// Package lockout provides the persistent brute-force throttle for passfx.
//
// Failed unlock attempts are counted in a small state file outside the
// encrypted payload, so the penalty exists before a vault does and survives
// process restarts. Once the failure count reaches the free-attempt
// threshold, each further failure extends an exponential lockout window
// (min(2^count, max) seconds). The window never moves backwards across
// consecutive failures and resets only on a verified success.
package lockout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/passfx/passfx/pkg/storage"
)

// Defaults for the throttle; overridable through Config with floors enforced.
const (
	// DefaultThreshold is the number of free attempts before lockout starts.
	DefaultThreshold = 3

	// DefaultMaxLockoutSeconds caps the exponential penalty at one hour.
	DefaultMaxLockoutSeconds = 3600

	// MinMaxLockoutSeconds is the floor for the configurable cap.
	MinMaxLockoutSeconds = 60
)

// ErrLockedOut is wrapped by LockedOutError for errors.Is matching.
var ErrLockedOut = errors.New("lockout: too many failed attempts")

// LockedOutError reports an active lockout window and how long remains.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("lockout: too many failed attempts, retry in %v", e.Remaining.Round(time.Second))
}

// Unwrap lets errors.Is(err, ErrLockedOut) match.
func (e *LockedOutError) Unwrap() error {
	return ErrLockedOut
}

// State is the persisted throttle record.
type State struct {
	FailureCount int       `json:"failure_count"`
	LockoutUntil time.Time `json:"lockout_until"`
}

// Config tunes the throttle. Zero values select the defaults.
type Config struct {
	// Threshold is the number of free attempts before lockout engages.
	Threshold int
	// MaxLockoutSeconds caps the exponential penalty.
	MaxLockoutSeconds int
}

// Guard enforces the persisted throttle over <dir>/.lockout.
type Guard struct {
	path      string
	threshold int
	maxSecs   int
	now       func() time.Time
}

// NewGuard returns a guard for the vault directory.
func NewGuard(dir string, cfg Config) *Guard {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	maxSecs := cfg.MaxLockoutSeconds
	if maxSecs <= 0 {
		maxSecs = DefaultMaxLockoutSeconds
	}
	if maxSecs < MinMaxLockoutSeconds {
		maxSecs = MinMaxLockoutSeconds
	}
	return &Guard{
		path:      filepath.Join(dir, storage.LockoutFileName),
		threshold: threshold,
		maxSecs:   maxSecs,
		now:       time.Now,
	}
}

// CheckLocked reports whether unlocking is currently throttled. State is read
// from disk on every call, so a fresh process inherits the penalty.
func (g *Guard) CheckLocked() error {
	state, err := g.load()
	if err != nil {
		return err
	}
	now := g.now()
	if now.Before(state.LockoutUntil) {
		return &LockedOutError{Remaining: state.LockoutUntil.Sub(now)}
	}
	return nil
}

// RecordFailure increments the persisted failure count and, past the free
// attempts, extends the lockout window. The window is monotonically
// non-decreasing: a new penalty never shortens one already in force.
func (g *Guard) RecordFailure() error {
	state, err := g.load()
	if err != nil {
		return err
	}

	state.FailureCount++
	if state.FailureCount >= g.threshold {
		until := g.now().Add(g.penalty(state.FailureCount))
		if until.After(state.LockoutUntil) {
			state.LockoutUntil = until
		}
	}
	return g.save(state)
}

// RecordSuccess resets the throttle after a verified unlock.
func (g *Guard) RecordSuccess() error {
	return g.save(&State{})
}

// FailureCount returns the persisted count, for status display.
func (g *Guard) FailureCount() (int, error) {
	state, err := g.load()
	if err != nil {
		return 0, err
	}
	return state.FailureCount, nil
}

// penalty computes min(2^count, max) seconds.
func (g *Guard) penalty(count int) time.Duration {
	secs := float64(g.maxSecs)
	if count < 63 {
		secs = math.Min(float64(uint64(1)<<uint(count)), secs)
	}
	return time.Duration(secs) * time.Second
}

// load reads the state file. Missing state means no failures yet; a corrupt
// file is treated the same, since refusing to parse it would lock the user
// out of their own throttle reset.
func (g *Guard) load() (*State, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("lockout: failed to read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return &State{}, nil
	}
	return &state, nil
}

// save persists the state through the same atomic-write discipline as the
// vault payload.
func (g *Guard) save(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("lockout: failed to marshal state: %w", err)
	}
	if err := storage.AtomicWriteFile(g.path, data); err != nil {
		return fmt.Errorf("lockout: failed to write state: %w", err)
	}
	return nil
}
