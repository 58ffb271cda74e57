// Package storage provides the crash-safe persistence layer for passfx.
//
// It implements the vault blob store (atomic writes, single-writer advisory
// locking, single-slot backup rotation), the salt store with its keyed
// integrity tag, and shared atomic-write helpers reused by the lockout state.
// Implements the durability rules of the storage design:
//
//   - Saves go through temp file -> fsync -> chmod -> backup rotation ->
//     rename -> directory fsync. The primary is never observable truncated
//     or half-written.
//   - Loads refuse to follow symlinks at the vault path.
//   - One process holds the writer lock at a time; a second opener fails
//     fast instead of blocking or corrupting state.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// On-disk names within the vault directory.
const (
	VaultFileName   = "vault.enc"
	BackupFileName  = "vault.enc.bak"
	SaltFileName    = "salt"
	LockoutFileName = ".lockout"
	LockFileName    = "vault.lock"

	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only

	// MinDiskSpaceBytes is the free-space floor required before any write.
	MinDiskSpaceBytes = 1 * 1024 * 1024
)

// Errors returned by the storage layer.
var (
	ErrVaultNotFound    = errors.New("storage: vault not found")
	ErrVaultExists      = errors.New("storage: vault already exists at this path")
	ErrAlreadyOpen      = errors.New("storage: vault already open elsewhere")
	ErrSymlinkRejected  = errors.New("storage: refusing to operate through a symlink")
	ErrFatalCorruption  = errors.New("storage: primary and backup vault files are both unreadable")
	ErrInsufficientDisk = errors.New("storage: insufficient disk space")
)

// BlobStore is the crash-safe store for the encrypted vault payload. It owns
// the advisory writer lock for the vault directory: Open acquires it, Close
// releases it, and while it is held no other process can open the same vault
// for writing.
type BlobStore struct {
	dir      string
	lockFile *os.File
}

// OpenBlobStore creates the vault directory if needed and acquires the
// exclusive advisory lock. A concurrent holder causes an immediate
// ErrAlreadyOpen; the call never blocks on the lock.
func OpenBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return nil, fmt.Errorf("storage: failed to create vault directory: %w", err)
	}
	// MkdirAll does not tighten an existing directory.
	if err := os.Chmod(dir, DirMode); err != nil {
		return nil, fmt.Errorf("storage: failed to set vault directory permissions: %w", err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open lock file: %w", err)
	}
	if err := lockExclusive(lockFile); err != nil {
		lockFile.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, ErrAlreadyOpen
		}
		return nil, fmt.Errorf("storage: failed to acquire vault lock: %w", err)
	}

	return &BlobStore{dir: dir, lockFile: lockFile}, nil
}

// Close releases the writer lock. Safe to call more than once.
func (s *BlobStore) Close() error {
	if s.lockFile == nil {
		return nil
	}
	err := unlock(s.lockFile)
	closeErr := s.lockFile.Close()
	s.lockFile = nil
	if err != nil {
		return fmt.Errorf("storage: failed to release vault lock: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("storage: failed to close lock file: %w", closeErr)
	}
	return nil
}

// Dir returns the vault directory path.
func (s *BlobStore) Dir() string {
	return s.dir
}

// Exists reports whether a vault payload is present.
func (s *BlobStore) Exists() bool {
	_, err := os.Lstat(filepath.Join(s.dir, VaultFileName))
	return err == nil
}

// BackupExists reports whether the backup slot holds a payload.
func (s *BlobStore) BackupExists() bool {
	_, err := os.Lstat(filepath.Join(s.dir, BackupFileName))
	return err == nil
}

// Save atomically replaces the vault payload. The previous committed version
// moves to the single rotating backup slot before the rename. Any failure
// before the rename leaves the primary untouched, removes the temp file and
// propagates the error.
func (s *BlobStore) Save(data []byte) error {
	if err := checkDiskSpaceForWrite(s.dir, len(data)); err != nil {
		return err
	}

	primary := filepath.Join(s.dir, VaultFileName)

	tmp, err := os.CreateTemp(s.dir, "vault-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Cleanup applies on every failure path before the rename.
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to %s: %w", step, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync temp file", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		return fail("chmod temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to close temp file: %w", err)
	}

	// Rotate the current primary into the single backup slot. A missing
	// primary (first save) is fine; any other copy failure aborts before
	// the primary is touched.
	if err := s.rotateBackup(primary); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// One filesystem operation: the primary is either the old blob or the
	// new one, never a mixture.
	if err := os.Rename(tmpPath, primary); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to replace vault file: %w", err)
	}

	if err := syncDir(s.dir); err != nil {
		return err
	}
	return nil
}

// Load reads the vault payload. The path is rejected if it is a symlink. An
// unreadable primary falls back to the backup slot; when both are unreadable
// the distinct ErrFatalCorruption is returned rather than pretending the
// vault is empty.
func (s *BlobStore) Load() ([]byte, error) {
	primary := filepath.Join(s.dir, VaultFileName)

	data, err := readNoFollow(primary)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, ErrSymlinkRejected) {
		return nil, err
	}
	if os.IsNotExist(err) {
		return nil, ErrVaultNotFound
	}

	// Primary unreadable for another reason: try the last committed backup.
	backup, backupErr := readNoFollow(filepath.Join(s.dir, BackupFileName))
	if backupErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatalCorruption, err)
	}
	fmt.Fprintf(os.Stderr, "warning: primary vault file unreadable, using backup: %v\n", err)
	return backup, nil
}

// LoadBackup reads the previous committed version from the backup slot.
func (s *BlobStore) LoadBackup() ([]byte, error) {
	data, err := readNoFollow(filepath.Join(s.dir, BackupFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}
	return data, nil
}

// rotateBackup copies the current primary into the backup slot.
func (s *BlobStore) rotateBackup(primary string) error {
	src, err := openNoFollow(primary)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: failed to open vault file for backup: %w", err)
	}
	defer src.Close()

	backupPath := filepath.Join(s.dir, BackupFileName)
	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, FileMode)
	if err != nil {
		return fmt.Errorf("storage: failed to open backup slot: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("storage: failed to copy backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return fmt.Errorf("storage: failed to sync backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("storage: failed to close backup: %w", err)
	}
	return nil
}

// AtomicWriteFile writes data to path with the same temp+fsync+rename
// discipline as BlobStore.Save, without backup rotation. The lockout state
// and salt file go through this path.
func AtomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to sync temp file: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: failed to replace %s: %w", filepath.Base(path), err)
	}
	return syncDir(dir)
}

// readNoFollow reads a file after rejecting symlinks at the final path
// component.
func readNoFollow(path string) ([]byte, error) {
	f, err := openNoFollow(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// syncDir fsyncs the directory entry so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("storage: failed to open directory for sync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("storage: failed to sync directory: %w", err)
	}
	return nil
}

// checkDiskSpaceForWrite verifies sufficient free space before a write.
// A failed statfs is a warning, not a blocker.
func checkDiskSpaceForWrite(dir string, dataSize int) error {
	avail, err := availableDiskSpace(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to check disk space: %v\n", err)
		return nil
	}

	required := uint64(MinDiskSpaceBytes)
	if uint64(dataSize*2) > required {
		required = uint64(dataSize * 2)
	}
	if avail < required {
		return fmt.Errorf("%w: %d bytes available, need %d", ErrInsufficientDisk, avail, required)
	}
	return nil
}
