package backup

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/passfx/passfx/pkg/crypto"
)

// HMACLength is the length of the trailing HMAC-SHA256.
const HMACLength = sha256.Size

// HKDF info strings splitting the backup master key into independent
// encryption and MAC keys.
const (
	hkdfInfoEncryption = "passfx backup encryption v1"
	hkdfInfoMAC        = "passfx backup mac v1"
)

// deriveBackupKeys derives the encryption and MAC keys from a password
// and a fresh backup salt. The backup salt is never the vault salt.
func deriveBackupKeys(password, salt []byte) (encKey, macKey []byte, err error) {
	if len(password) == 0 {
		return nil, nil, ErrEmptyPassword
	}

	masterKey, err := crypto.DeriveKey(password, salt)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(masterKey)

	encKey, err = crypto.DeriveSubkey(masterKey, hkdfInfoEncryption)
	if err != nil {
		return nil, nil, fmt.Errorf("backup: failed to derive encryption key: %w", err)
	}
	macKey, err = crypto.DeriveSubkey(masterKey, hkdfInfoMAC)
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("backup: failed to derive MAC key: %w", err)
	}
	return encKey, macKey, nil
}

// computeHMAC computes HMAC-SHA256 over data.
func computeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// verifyHMAC checks the HMAC in constant time.
func verifyHMAC(data, expected, key []byte) bool {
	return hmac.Equal(computeHMAC(data, key), expected)
}
