package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/passfx/passfx/pkg/crypto"
)

// saltTagInfo is the HKDF domain for the salt integrity tag key.
const saltTagInfo = "passfx salt integrity v1"

// SaltTagLength is the length of the HMAC-SHA256 integrity tag.
const SaltTagLength = sha256.Size

// Salt errors.
var (
	ErrSaltNotFound  = errors.New("storage: salt file not found")
	ErrSaltExists    = errors.New("storage: salt already exists, refusing to regenerate")
	ErrSaltIntegrity = errors.New("storage: salt integrity check failed")
)

// SaltStore persists the per-vault master salt alongside a keyed integrity
// tag, independently of the encrypted payload. The salt is generated exactly
// once at vault creation and never silently regenerated; a tag mismatch is a
// tamper signal and the caller must not proceed to key derivation.
type SaltStore struct {
	path string
}

// NewSaltStore returns a store over <dir>/salt.
func NewSaltStore(dir string) *SaltStore {
	return &SaltStore{path: filepath.Join(dir, SaltFileName)}
}

// Exists reports whether a salt file is present.
func (s *SaltStore) Exists() bool {
	_, err := os.Lstat(s.path)
	return err == nil
}

// Create generates a fresh 32-byte salt, tags it and persists both with
// owner-only permissions. An existing salt is never overwritten.
func (s *SaltStore) Create() ([]byte, error) {
	if s.Exists() {
		return nil, ErrSaltExists
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	tag, err := saltTag(salt)
	if err != nil {
		return nil, err
	}

	record := make([]byte, 0, len(salt)+len(tag))
	record = append(record, salt...)
	record = append(record, tag...)
	if err := AtomicWriteFile(s.path, record); err != nil {
		return nil, err
	}
	return salt, nil
}

// Remove deletes the salt file. It exists only to roll back a vault
// creation whose payload never reached disk; once a vault blob is
// committed the salt must never be removed or regenerated.
func (s *SaltStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: failed to remove salt file: %w", err)
	}
	return nil
}

// Load reads the salt, recomputes the tag and compares in constant time.
// Any mismatch — wrong length, truncation, altered bytes — fails closed with
// ErrSaltIntegrity before a key can be derived from attacker-influenced data.
func (s *SaltStore) Load() ([]byte, error) {
	record, err := readNoFollow(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSaltNotFound
		}
		return nil, err
	}

	if len(record) != crypto.SaltLength+SaltTagLength {
		return nil, ErrSaltIntegrity
	}
	salt := record[:crypto.SaltLength]
	storedTag := record[crypto.SaltLength:]

	tag, err := saltTag(salt)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(tag, storedTag) {
		return nil, ErrSaltIntegrity
	}
	return salt, nil
}

// saltTag computes HMAC-SHA256 over the salt with an HKDF-derived key.
func saltTag(salt []byte) ([]byte, error) {
	tagKey, err := crypto.DeriveSubkey(salt, saltTagInfo)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to derive salt tag key: %w", err)
	}
	defer crypto.SecureWipe(tagKey)

	mac := hmac.New(sha256.New, tagKey)
	mac.Write(salt)
	return mac.Sum(nil), nil
}
