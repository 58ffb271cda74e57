//go:build !windows

package config

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// openNoFollow opens the config file refusing to traverse a symlink
// at the final path component.
func openNoFollow(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlinkRejected
		}
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("config: failed to open file: %w", err)
	}
	return f, nil
}

// checkPermissions requires the file to be exactly 0600.
func checkPermissions(info os.FileInfo) error {
	if perm := info.Mode().Perm(); perm != 0600 {
		return fmt.Errorf("%w: %o (expected 0600)", ErrInsecurePermissions, perm)
	}
	return nil
}

// checkOwnership refuses a config file owned by another user.
func checkOwnership(info os.FileInfo) error {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if ok && stat.Uid != uint32(os.Getuid()) {
		return ErrNotOwnedByUser
	}
	return nil
}
