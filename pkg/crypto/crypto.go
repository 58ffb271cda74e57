// Package crypto provides the cryptographic primitives for passfx.
//
// This package implements Argon2id key derivation and AES-256-GCM
// authenticated encryption over a versioned token format.
//
// # Security Features
//
//   - Argon2id key derivation (64MB memory, 3 iterations, 4 threads)
//   - AES-256-GCM authenticated encryption with a fresh random nonce per call
//   - Versioned token envelope so the algorithm can be migrated later
//   - Single undifferentiated decryption failure (no tamper/wrong-key oracle)
//   - Secure memory wiping for sensitive data
//
// # Example Usage
//
//	salt, _ := crypto.GenerateSalt()
//	key, _ := crypto.DeriveKey([]byte("password"), salt)
//
//	token, _ := crypto.Seal(key, plaintext)
//	plaintext, err := crypto.Open(key, token)
//
//	crypto.SecureWipe(key)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Argon2id parameters following OWASP recommendations. These are fixed
// constants: the cost floor is enforced here, not left to callers.
const (
	// Argon2Memory is the memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the number of iterations.
	Argon2Time = 3

	// Argon2Threads is the degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// SaltLength is the required master salt length in bytes.
	SaltLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// TokenVersion is the current token envelope version.
	TokenVersion = 1
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidSaltLength indicates the salt is not exactly 32 bytes.
	ErrInvalidSaltLength = errors.New("crypto: invalid salt length, must be 32 bytes")

	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrUnsupportedVersion indicates the token carries an unknown version byte.
	ErrUnsupportedVersion = errors.New("crypto: unsupported token version")

	// ErrDecryptionFailed is the single failure returned for every decryption
	// problem within a known version: wrong key, truncated token, corrupted
	// ciphertext and failed tag verification are intentionally
	// indistinguishable.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

// GenerateSalt returns a fresh 32-byte cryptographically random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 256-bit encryption key from a password using Argon2id.
//
// The salt must be exactly 32 bytes; anything else is rejected before any
// derivation work is done. Identical inputs always yield identical output.
// The password is neither logged nor retained beyond the call.
func DeriveKey(password, salt []byte) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	return argon2.IDKey(password, salt, Argon2Time, Argon2Memory, Argon2Threads, KeyLength), nil
}

// DeriveSubkey derives a purpose-bound 32-byte subkey from key material using
// HKDF-SHA256. The info string separates key domains (salt tag, audit chain,
// backup encryption) so a subkey compromise cannot cross domains.
func DeriveSubkey(key []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, key, nil, []byte(info))
	sub := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, sub); err != nil {
		return nil, fmt.Errorf("crypto: failed to derive subkey: %w", err)
	}
	return sub, nil
}

// Seal encrypts plaintext using AES-256-GCM and wraps it in the versioned
// token envelope:
//
//	version (1 byte) || nonce (12 bytes) || ciphertext+tag
//
// Every call draws a fresh random nonce; nonce reuse is a correctness bug,
// not a tunable.
func Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	token := make([]byte, 0, 1+NonceLength+len(plaintext)+gcm.Overhead())
	token = append(token, TokenVersion)
	token = append(token, nonce...)
	token = gcm.Seal(token, nonce, plaintext, nil)
	return token, nil
}

// Open authenticates and decrypts a token produced by Seal.
//
// An unrecognized version byte is rejected explicitly with
// ErrUnsupportedVersion, never guessed at. Within a known version, every
// failure collapses into ErrDecryptionFailed so callers cannot distinguish a
// wrong key from corruption or tampering.
func Open(key, token []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(token) == 0 {
		return nil, ErrDecryptionFailed
	}
	if token[0] != TokenVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, token[0])
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	if len(token) < 1+NonceLength+gcm.Overhead() {
		return nil, ErrDecryptionFailed
	}
	nonce := token[1 : 1+NonceLength]
	ciphertext := token[1+NonceLength:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
// This is critical for securely destroying the master key and plaintext
// snapshot buffers.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
