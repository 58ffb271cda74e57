//go:build windows

package main

// disableCoreDumps is a no-op on Windows; there is no RLIMIT_CORE
// equivalent to clear.
func disableCoreDumps() error {
	return nil
}
