package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	if *cfg != *want {
		t.Errorf("Load on empty dir = %+v, want defaults %+v", cfg, want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Version:               1,
		AutoLockMinutes:       10,
		ClipboardClearSeconds: 15,
		LockoutThreshold:      5,
		MaxLockoutSeconds:     600,
	}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config permissions = %o, want 0600", perm)
		}
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadAppliesFloors(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &Config{
		Version:               1,
		AutoLockMinutes:       -1,
		ClipboardClearSeconds: 1,
		LockoutThreshold:      0,
		MaxLockoutSeconds:     5,
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AutoLockMinutes != DefaultAutoLockMinutes {
		t.Errorf("AutoLockMinutes = %d, want %d", cfg.AutoLockMinutes, DefaultAutoLockMinutes)
	}
	if cfg.ClipboardClearSeconds != MinClipboardClearSeconds {
		t.Errorf("ClipboardClearSeconds = %d, want %d", cfg.ClipboardClearSeconds, MinClipboardClearSeconds)
	}
	if cfg.LockoutThreshold != DefaultLockoutThreshold {
		t.Errorf("LockoutThreshold = %d, want %d", cfg.LockoutThreshold, DefaultLockoutThreshold)
	}
	if cfg.MaxLockoutSeconds != MinMaxLockoutSeconds {
		t.Errorf("MaxLockoutSeconds = %d, want %d", cfg.MaxLockoutSeconds, MinMaxLockoutSeconds)
	}
}

func TestLoadKeepsAutoLockDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &Config{Version: 1, AutoLockMinutes: 0, ClipboardClearSeconds: 30, LockoutThreshold: 3, MaxLockoutSeconds: 3600}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AutoLockMinutes != 0 {
		t.Errorf("AutoLockMinutes = %d, want 0 (disabled)", cfg.AutoLockMinutes)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on windows")
	}
	dir := t.TempDir()
	if err := Save(dir, Default()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.Chmod(filepath.Join(dir, FileName), 0644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrInsecurePermissions) {
		t.Errorf("Load with 0644 = %v, want ErrInsecurePermissions", err)
	}
}

func TestLoadRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.yaml")
	if err := os.WriteFile(target, []byte("version: 1\n"), 0600); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(dir, FileName)); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrSymlinkRejected) {
		t.Errorf("Load via symlink = %v, want ErrSymlinkRejected", err)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("version: 2\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Load version 2 = %v, want ErrUnsupportedVersion", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not yaml: ["), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load accepted malformed yaml")
	}
}
