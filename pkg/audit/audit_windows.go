//go:build windows

package audit

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// checkDiskSpace refuses log writes when free space is below the
// floor. A failed query is a warning, not a refusal.
func (l *Logger) checkDiskSpace() error {
	dir, err := windows.UTF16PtrFromString(l.dir)
	if err != nil {
		return nil
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &free, &total, &totalFree); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to check disk space for audit: %v\n", err)
		return nil
	}
	if free < MinDiskSpace {
		return fmt.Errorf("%w: %d bytes available, need at least %d", ErrInsufficient, free, MinDiskSpace)
	}
	return nil
}
