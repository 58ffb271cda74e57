package backup

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/passfx/passfx/pkg/crypto"
	"github.com/passfx/passfx/pkg/storage"
)

// Info summarizes a verified backup.
type Info struct {
	Version     int
	CreatedAt   time.Time
	RecordCount int
}

// Write creates an encrypted backup of the vault directory and writes
// it to w. A fresh salt is generated for every backup; the vault salt
// is carried inside the encrypted payload, never reused as the backup
// KDF salt. recordCount is advisory metadata shown by Verify.
//
// The layout is: magic, JSON header, u32 ciphertext length,
// ciphertext, trailing HMAC-SHA256 over everything before it.
func Write(w io.Writer, dir string, password []byte, recordCount int) error {
	payload, err := collectVaultFiles(dir)
	if err != nil {
		return err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	encKey, macKey, err := deriveBackupKeys(password, salt)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backup: failed to marshal payload: %w", err)
	}
	ciphertext, err := crypto.Seal(encKey, plaintext)
	crypto.SecureWipe(plaintext)
	if err != nil {
		return err
	}

	header := &Header{
		Version:     FormatVersion,
		CreatedAt:   time.Now().UTC(),
		RecordCount: recordCount,
		KDF: KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
	}

	// Assemble in memory first so the HMAC covers the exact bytes.
	var buf bytes.Buffer
	if err := writeHeader(&buf, header); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return fmt.Errorf("backup: failed to write ciphertext length: %w", err)
	}
	if _, err := buf.Write(ciphertext); err != nil {
		return fmt.Errorf("backup: failed to write ciphertext: %w", err)
	}

	mac := computeHMAC(buf.Bytes(), macKey)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("backup: failed to write backup: %w", err)
	}
	if _, err := w.Write(mac); err != nil {
		return fmt.Errorf("backup: failed to write HMAC: %w", err)
	}
	return nil
}

// WriteFile writes a backup atomically to path with 0600 permissions.
func WriteFile(path, dir string, password []byte, recordCount int) error {
	var buf bytes.Buffer
	if err := Write(&buf, dir, password, recordCount); err != nil {
		return err
	}
	return storage.AtomicWriteFile(path, buf.Bytes())
}

// Verify checks a backup's integrity and decrypts it without touching
// any vault directory.
func Verify(path string, password []byte) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read backup file: %w", err)
	}
	header, _, err := verifyAndDecrypt(data, password)
	if err != nil {
		return nil, err
	}
	return &Info{Version: header.Version, CreatedAt: header.CreatedAt, RecordCount: header.RecordCount}, nil
}

// Restore decrypts a backup into targetDir. An existing vault at the
// target is refused unless overwrite is set. Files land via atomic
// writes; the stale backup slot is removed so a restored vault cannot
// fall back to pre-restore data.
func Restore(path string, password []byte, targetDir string, overwrite bool) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read backup file: %w", err)
	}
	header, payload, err := verifyAndDecrypt(data, password)
	if err != nil {
		return nil, err
	}

	saltPath := filepath.Join(targetDir, storage.SaltFileName)
	vaultPath := filepath.Join(targetDir, storage.VaultFileName)
	if !overwrite {
		for _, p := range []string{saltPath, vaultPath} {
			if _, err := os.Lstat(p); err == nil {
				return nil, ErrVaultExists
			}
		}
	}

	if err := os.MkdirAll(targetDir, storage.DirMode); err != nil {
		return nil, fmt.Errorf("backup: failed to create vault directory: %w", err)
	}
	if err := os.Chmod(targetDir, storage.DirMode); err != nil {
		return nil, fmt.Errorf("backup: failed to set directory permissions: %w", err)
	}

	if err := storage.AtomicWriteFile(saltPath, payload.Salt); err != nil {
		return nil, err
	}
	if err := storage.AtomicWriteFile(vaultPath, payload.Vault); err != nil {
		return nil, err
	}
	lockoutPath := filepath.Join(targetDir, storage.LockoutFileName)
	if len(payload.Lockout) > 0 {
		if err := storage.AtomicWriteFile(lockoutPath, payload.Lockout); err != nil {
			return nil, err
		}
	} else {
		os.Remove(lockoutPath)
	}
	os.Remove(filepath.Join(targetDir, storage.BackupFileName))

	return &Info{Version: header.Version, CreatedAt: header.CreatedAt, RecordCount: header.RecordCount}, nil
}

// collectVaultFiles reads the raw vault directory files for backup.
func collectVaultFiles(dir string) (*Payload, error) {
	salt, err := os.ReadFile(filepath.Join(dir, storage.SaltFileName))
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read salt file: %w", err)
	}
	vaultData, err := os.ReadFile(filepath.Join(dir, storage.VaultFileName))
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read vault file: %w", err)
	}
	payload := &Payload{Salt: salt, Vault: vaultData}

	// Lockout state is optional and carried so a restore cannot reset
	// an attacker's failure window.
	if lockoutData, err := os.ReadFile(filepath.Join(dir, storage.LockoutFileName)); err == nil {
		payload.Lockout = lockoutData
	}
	return payload, nil
}

// verifyAndDecrypt checks the trailing HMAC and decrypts the payload.
// The HMAC is verified before the ciphertext is opened.
func verifyAndDecrypt(data []byte, password []byte) (*Header, *Payload, error) {
	if len(data) < len(MagicNumber)+4+HMACLength {
		return nil, nil, ErrTruncated
	}

	reader := bytes.NewReader(data)
	header, err := readHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	headerEnd := len(data) - reader.Len()

	var ciphertextLen uint32
	if err := binary.Read(reader, binary.BigEndian, &ciphertextLen); err != nil {
		return nil, nil, fmt.Errorf("%w: missing ciphertext length", ErrTruncated)
	}
	if reader.Len() < int(ciphertextLen)+HMACLength {
		return nil, nil, ErrTruncated
	}

	ciphertext := make([]byte, ciphertextLen)
	if _, err := io.ReadFull(reader, ciphertext); err != nil {
		return nil, nil, fmt.Errorf("%w: incomplete ciphertext", ErrTruncated)
	}
	storedMAC := make([]byte, HMACLength)
	if _, err := io.ReadFull(reader, storedMAC); err != nil {
		return nil, nil, fmt.Errorf("%w: incomplete HMAC", ErrTruncated)
	}

	encKey, macKey, err := deriveBackupKeys(password, header.KDF.Salt)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	macked := data[:headerEnd+4+int(ciphertextLen)]
	if !verifyHMAC(macked, storedMAC, macKey) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := crypto.Open(encKey, ciphertext)
	if err != nil {
		return nil, nil, ErrDecryptionFailed
	}
	defer crypto.SecureWipe(plaintext)

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, nil, fmt.Errorf("backup: failed to unmarshal payload: %w", err)
	}
	return header, &payload, nil
}
