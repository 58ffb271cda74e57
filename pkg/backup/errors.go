// Package backup provides encrypted single-file backup and restore of
// the whole vault directory.
package backup

import "errors"

// Backup/restore errors.
var (
	// ErrInvalidMagic indicates the file is not a passfx backup.
	ErrInvalidMagic = errors.New("backup: magic number mismatch")

	// ErrUnsupportedVersion indicates a backup format from the future.
	ErrUnsupportedVersion = errors.New("backup: unsupported format version")

	// ErrTruncated indicates the file ends before its declared contents.
	ErrTruncated = errors.New("backup: file truncated")

	// ErrIntegrityFailed indicates the trailing HMAC did not verify.
	ErrIntegrityFailed = errors.New("backup: integrity check failed")

	// ErrDecryptionFailed indicates a wrong password or corrupted payload.
	ErrDecryptionFailed = errors.New("backup: decryption failed")

	// ErrEmptyPassword indicates no password was provided.
	ErrEmptyPassword = errors.New("backup: password cannot be empty")

	// ErrVaultExists indicates restore would clobber an existing vault.
	ErrVaultExists = errors.New("backup: vault already exists at restore target")
)
