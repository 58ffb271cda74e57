package lockout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/passfx/passfx/pkg/storage"
)

// fixedClock lets tests move time by hand.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time {
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestGuard(t *testing.T, cfg Config) (*Guard, *fixedClock, string) {
	t.Helper()
	dir := t.TempDir()
	clock := &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := NewGuard(dir, cfg)
	g.now = clock.now
	return g, clock, dir
}

func TestGuardFreeAttempts(t *testing.T) {
	g, _, _ := newTestGuard(t, Config{Threshold: 3, MaxLockoutSeconds: 3600})

	// Two failures stay under the threshold
	for i := 0; i < 2; i++ {
		if err := g.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
		if err := g.CheckLocked(); err != nil {
			t.Fatalf("CheckLocked() after %d failures: error = %v, want nil", i+1, err)
		}
	}

	count, err := g.FailureCount()
	if err != nil {
		t.Fatalf("FailureCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("FailureCount() = %d, want 2", count)
	}
}

// TestGuardExponentialWindow: with threshold=3 and min(2^n, 3600), the
// third failure opens an 8 second window.
func TestGuardExponentialWindow(t *testing.T) {
	g, clock, _ := newTestGuard(t, Config{Threshold: 3, MaxLockoutSeconds: 3600})

	for i := 0; i < 3; i++ {
		if err := g.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	// t+1: locked with ~7s remaining
	clock.advance(1 * time.Second)
	err := g.CheckLocked()
	var locked *LockedOutError
	if !errors.As(err, &locked) {
		t.Fatalf("CheckLocked() at t+1: error = %v, want LockedOutError", err)
	}
	if !errors.Is(err, ErrLockedOut) {
		t.Error("LockedOutError should match ErrLockedOut via errors.Is")
	}
	if locked.Remaining != 7*time.Second {
		t.Errorf("Remaining = %v, want 7s", locked.Remaining)
	}

	// t+9: window expired, verification may proceed
	clock.advance(8 * time.Second)
	if err := g.CheckLocked(); err != nil {
		t.Errorf("CheckLocked() at t+9: error = %v, want nil", err)
	}
}

func TestGuardWindowMonotonic(t *testing.T) {
	g, clock, _ := newTestGuard(t, Config{Threshold: 1, MaxLockoutSeconds: 3600})

	// Failures 1..5 at the same instant: window only grows
	var prev time.Duration
	for i := 0; i < 5; i++ {
		if err := g.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
		var locked *LockedOutError
		if err := g.CheckLocked(); !errors.As(err, &locked) {
			t.Fatalf("CheckLocked() after failure %d: error = %v, want LockedOutError", i+1, err)
		} else {
			if locked.Remaining < prev {
				t.Errorf("window shrank after failure %d: %v -> %v", i+1, prev, locked.Remaining)
			}
			prev = locked.Remaining
		}
	}

	// A later failure with a smaller 2^n-from-now never pulls the window in.
	// (Not reachable with growing counts, but the cap makes it possible.)
	clock.advance(1 * time.Hour)
	if err := g.CheckLocked(); err != nil {
		t.Fatalf("CheckLocked() after window: error = %v", err)
	}
}

func TestGuardCapsPenalty(t *testing.T) {
	g, _, _ := newTestGuard(t, Config{Threshold: 1, MaxLockoutSeconds: 3600})

	// Enough failures that 2^count far exceeds the cap
	for i := 0; i < 20; i++ {
		if err := g.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	var locked *LockedOutError
	if err := g.CheckLocked(); !errors.As(err, &locked) {
		t.Fatalf("CheckLocked() error = %v, want LockedOutError", err)
	} else if locked.Remaining > 3600*time.Second {
		t.Errorf("Remaining = %v, want <= 1h cap", locked.Remaining)
	}
}

func TestGuardResetOnSuccess(t *testing.T) {
	g, _, _ := newTestGuard(t, Config{Threshold: 1, MaxLockoutSeconds: 3600})

	for i := 0; i < 4; i++ {
		if err := g.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	if err := g.CheckLocked(); err == nil {
		t.Fatal("CheckLocked() should report lockout before reset")
	}

	if err := g.RecordSuccess(); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	if err := g.CheckLocked(); err != nil {
		t.Errorf("CheckLocked() after success: error = %v, want nil", err)
	}
	count, err := g.FailureCount()
	if err != nil {
		t.Fatalf("FailureCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("FailureCount() after success = %d, want 0", count)
	}
}

// TestGuardSurvivesRestart simulates a process restart by constructing a
// fresh guard over the same directory.
func TestGuardSurvivesRestart(t *testing.T) {
	g, clock, dir := newTestGuard(t, Config{Threshold: 3, MaxLockoutSeconds: 3600})

	for i := 0; i < 3; i++ {
		if err := g.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	restarted := NewGuard(dir, Config{Threshold: 3, MaxLockoutSeconds: 3600})
	restarted.now = clock.now
	clock.advance(1 * time.Second)

	var locked *LockedOutError
	if err := restarted.CheckLocked(); !errors.As(err, &locked) {
		t.Fatalf("CheckLocked() after restart: error = %v, want LockedOutError", err)
	} else if locked.Remaining != 7*time.Second {
		t.Errorf("Remaining after restart = %v, want 7s", locked.Remaining)
	}

	count, err := restarted.FailureCount()
	if err != nil {
		t.Fatalf("FailureCount() error = %v", err)
	}
	if count != 3 {
		t.Errorf("FailureCount() after restart = %d, want 3", count)
	}
}

func TestGuardCorruptStateTreatedAsEmpty(t *testing.T) {
	g, _, dir := newTestGuard(t, Config{})

	path := filepath.Join(dir, storage.LockoutFileName)
	if err := os.WriteFile(path, []byte("{not json"), storage.FileMode); err != nil {
		t.Fatalf("write corrupt state: %v", err)
	}

	if err := g.CheckLocked(); err != nil {
		t.Errorf("CheckLocked() with corrupt state: error = %v, want nil", err)
	}
	count, err := g.FailureCount()
	if err != nil {
		t.Fatalf("FailureCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("FailureCount() with corrupt state = %d, want 0", count)
	}
}

func TestGuardLazyStateFile(t *testing.T) {
	g, _, dir := newTestGuard(t, Config{})

	// No state file until the first failure
	path := filepath.Join(dir, storage.LockoutFileName)
	if err := g.CheckLocked(); err != nil {
		t.Fatalf("CheckLocked() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("state file should not exist before the first failure")
	}

	if err := g.RecordFailure(); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("state file missing after failure: %v", err)
	}
	if perm := info.Mode().Perm(); perm != storage.FileMode {
		t.Errorf("state file permissions = %04o, want %04o", perm, storage.FileMode)
	}
}
