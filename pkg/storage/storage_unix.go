//go:build !windows

package storage

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var errWouldBlock = errors.New("storage: lock held by another process")

// lockExclusive takes a non-blocking exclusive flock on f.
func lockExclusive(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errWouldBlock
	}
	return err
}

// unlock releases the flock on f.
func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// openNoFollow opens path read-only, failing if the final component is a
// symlink. ELOOP from O_NOFOLLOW is surfaced as the symlink rejection.
func openNoFollow(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlinkRejected
		}
		return nil, err
	}
	return f, nil
}

// availableDiskSpace returns the bytes available to this user on the
// filesystem holding dir.
func availableDiskSpace(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
