//go:build !windows

package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// checkDiskSpace refuses log writes when free space is below the
// floor. A failed statfs is a warning, not a refusal.
func (l *Logger) checkDiskSpace() error {
	var stat unix.Statfs_t
	if err := unix.Statfs(l.dir, &stat); err != nil {
		if err := unix.Statfs(filepath.Dir(l.dir), &stat); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to check disk space for audit: %v\n", err)
			return nil
		}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < MinDiskSpace {
		return fmt.Errorf("%w: %d bytes available, need at least %d", ErrInsufficient, available, MinDiskSpace)
	}
	return nil
}
