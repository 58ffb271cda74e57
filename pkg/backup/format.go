package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MagicNumber identifies a passfx backup file: "PFXBKP1\n".
var MagicNumber = [8]byte{'P', 'F', 'X', 'B', 'K', 'P', '1', '\n'}

// FormatVersion is the current backup format version.
const FormatVersion = 1

// maxHeaderLen bounds the header read so a corrupt length field
// cannot force a huge allocation.
const maxHeaderLen = 1024 * 1024

// KDFParams records the Argon2id parameters used for the backup key.
// Restore currently derives with the fixed parameters; the header copy
// is diagnostic metadata for a future parameter migration.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// Header is the plaintext backup metadata. It is covered by the
// trailing HMAC but not encrypted.
type Header struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
	KDF         KDFParams `json:"kdf"`
}

// Payload is the encrypted backup content: the raw vault directory
// files. Lockout is optional.
type Payload struct {
	Salt    []byte `json:"salt"`
	Vault   []byte `json:"vault"`
	Lockout []byte `json:"lockout,omitempty"`
}

// writeHeader writes the magic number, a big-endian u32 length, and
// the JSON header.
func writeHeader(w io.Writer, header *Header) error {
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return fmt.Errorf("backup: failed to write magic number: %w", err)
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("backup: failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("backup: failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("backup: failed to write header: %w", err)
	}
	return nil
}

// readHeader reads and validates the magic number and header.
func readHeader(r io.Reader) (*Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMagic, err)
	}
	if magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: missing header length", ErrTruncated)
	}
	if headerLen > maxHeaderLen {
		return nil, fmt.Errorf("backup: header too large: %d bytes", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("%w: incomplete header", ErrTruncated)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("backup: failed to unmarshal header: %w", err)
	}
	if header.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, max supported %d", ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	return &header, nil
}
