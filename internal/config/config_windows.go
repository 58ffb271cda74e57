//go:build windows

package config

import (
	"fmt"
	"os"
)

// openNoFollow opens the config file, rejecting a symlink at the path.
func openNoFollow(path string) (*os.File, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, ErrSymlinkRejected
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("config: failed to open file: %w", err)
	}
	return f, nil
}

// checkPermissions is a no-op on Windows; Unix permission bits are
// not meaningful here.
func checkPermissions(os.FileInfo) error {
	return nil
}

// checkOwnership is a no-op on Windows; ACL inspection is not
// implemented.
func checkOwnership(os.FileInfo) error {
	return nil
}
