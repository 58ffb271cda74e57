package vault

import "errors"

// Sentinel errors returned by Session operations.
var (
	// ErrAuthentication is the single undifferentiated unlock failure.
	// A missing vault file, a corrupted blob, and a wrong password all
	// surface as this error so callers cannot distinguish them.
	ErrAuthentication = errors.New("vault: authentication failed")

	// ErrLocked is returned when an operation requires an unlocked session.
	ErrLocked = errors.New("vault: vault is locked")

	// ErrUnlockInProgress is returned when an unlock is attempted while
	// another unlock is still running.
	ErrUnlockInProgress = errors.New("vault: unlock already in progress")

	// ErrVaultExists is returned by Create when a vault is already present.
	ErrVaultExists = errors.New("vault: vault already exists")

	// ErrRecordNotFound is returned when a record ID does not exist.
	ErrRecordNotFound = errors.New("vault: record not found")

	// ErrDuplicateID is returned when adding a record whose ID is taken.
	ErrDuplicateID = errors.New("vault: duplicate record id")

	// ErrUnknownRecordKind is returned when decoding a record whose type
	// tag is not one of the six known kinds.
	ErrUnknownRecordKind = errors.New("vault: unknown record kind")

	// ErrSnapshotVersion is returned when decoding a snapshot written by
	// an unknown format version.
	ErrSnapshotVersion = errors.New("vault: unsupported snapshot version")
)
