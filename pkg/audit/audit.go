// Package audit provides append-only operation logging with an HMAC
// chain for tamper detection. Events are JSON lines; each record's MAC
// covers the previous record's MAC, so truncation, reordering, or
// edits anywhere in the file break verification.
//
// The MAC key is derived from the vault master key, so the log can
// only be written or verified while the vault is unlocked. Events that
// happen before the key exists, such as failed unlock attempts, are
// outside the chain's reach; the lockout state file records those.
// Logging is best-effort: vault operations never fail because the
// audit trail could not be written.
package audit

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Operation names recorded in the audit trail. All of them happen with
// the vault unlocked; failed unlocks cannot be chained because no MAC
// key exists yet.
const (
	OpVaultCreate   = "vault.create"
	OpVaultUnlock   = "vault.unlock"
	OpVaultLock     = "vault.lock"
	OpVaultAutoLock = "vault.auto_lock"
	OpVaultExport   = "vault.export"
	OpVaultImport   = "vault.import"
	OpVaultBackup   = "vault.backup"
	OpRecordAdd     = "record.add"
	OpRecordUpdate  = "record.update"
	OpRecordDelete  = "record.delete"
)

// Result values for an audit event.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

const (
	// FileName is the audit log file inside the audit directory.
	FileName = "audit.jsonl"

	// MinDiskSpace is the free-space floor below which writes are
	// refused rather than risking a torn log.
	MinDiskSpace = 1024 * 1024

	auditKeyInfo = "passfx audit v1"
	genesisHash  = "genesis"
)

// Errors returned by the audit logger.
var (
	ErrKeyNotSet      = errors.New("audit: MAC key not set")
	ErrChainBroken    = errors.New("audit: HMAC chain verification failed")
	ErrInsufficient   = errors.New("audit: insufficient disk space")
	ErrEventMalformed = errors.New("audit: malformed event")
)

// Event is a single audit log record.
type Event struct {
	Version   int               `json:"v"`
	Timestamp string            `json:"ts"`
	Operation string            `json:"op"`
	Result    string            `json:"result"`
	Context   map[string]string `json:"ctx,omitempty"`
	Chain     Chain             `json:"chain"`
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHMAC string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// Logger appends HMAC-chained events to the audit file.
type Logger struct {
	mu       sync.Mutex
	dir      string
	macKey   []byte
	sequence int64
	prevHMAC string
}

// NewLogger creates a logger writing under dir. No key is set; Log
// returns ErrKeyNotSet until SetKey is called with the master key.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir, prevHMAC: genesisHash}
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	return filepath.Join(l.dir, FileName)
}

// SetKey derives the MAC key from the master key via HKDF-SHA256 and
// resumes the chain from the last event already on disk.
func (l *Logger) SetKey(masterKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := hkdf.New(sha256.New, masterKey, nil, []byte(auditKeyInfo))
	key := make([]byte, 32)
	if _, err := r.Read(key); err != nil {
		return fmt.Errorf("audit: failed to derive MAC key: %w", err)
	}
	l.macKey = key

	seq, prev, err := l.tailChainState()
	if err != nil {
		// A missing or unreadable log restarts the chain; Verify
		// still catches tampering with any surviving events.
		seq, prev = 0, genesisHash
	}
	l.sequence = seq
	l.prevHMAC = prev
	return nil
}

// Clear wipes the MAC key. Called when the vault locks.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.macKey {
		l.macKey[i] = 0
	}
	l.macKey = nil
}

// Log appends one event to the chain.
func (l *Logger) Log(op, result string, ctx map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.macKey == nil {
		return ErrKeyNotSet
	}
	if err := os.MkdirAll(l.dir, 0700); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return err
	}

	event := Event{
		Version:   1,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		Result:    result,
		Context:   ctx,
	}
	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHMAC = l.prevHMAC
	event.Chain.HMAC = l.eventMAC(&event)

	line, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("audit: failed to encode event: %w", err)
	}
	if err := l.appendLine(line); err != nil {
		// Roll back so the next event reuses the sequence slot.
		l.sequence--
		return err
	}
	l.prevHMAC = event.Chain.HMAC
	return nil
}

// Verify walks the whole log and checks every link of the chain. It
// requires the key to be set, so only the vault owner can verify.
func (l *Logger) Verify() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.macKey == nil {
		return 0, ErrKeyNotSet
	}

	f, err := os.Open(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	var count int
	prev := genesisHash
	var seq int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return count, fmt.Errorf("%w: line %d: %v", ErrEventMalformed, count+1, err)
		}
		seq++
		if event.Chain.Sequence != seq || event.Chain.PrevHMAC != prev {
			return count, fmt.Errorf("%w: event %d", ErrChainBroken, seq)
		}
		if !hmac.Equal([]byte(event.Chain.HMAC), []byte(l.eventMAC(&event))) {
			return count, fmt.Errorf("%w: event %d", ErrChainBroken, seq)
		}
		prev = event.Chain.HMAC
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("audit: failed to read log: %w", err)
	}
	return count, nil
}

// eventMAC computes the HMAC over the chained fields of an event. The
// HMAC field itself is excluded. Caller holds l.mu with the key set.
func (l *Logger) eventMAC(event *Event) string {
	mac := hmac.New(sha256.New, l.macKey)
	fmt.Fprintf(mac, "%d|%s|%s|%s|%s", event.Chain.Sequence, event.Timestamp, event.Operation, event.Result, event.Chain.PrevHMAC)
	for _, k := range sortedKeys(event.Context) {
		fmt.Fprintf(mac, "|%s=%s", k, event.Context[k])
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// tailChainState reads the last event on disk to resume the chain.
func (l *Logger) tailChainState() (int64, string, error) {
	f, err := os.Open(l.Path())
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, "", err
	}
	if len(last) == 0 {
		return 0, genesisHash, nil
	}
	var event Event
	if err := json.Unmarshal(last, &event); err != nil {
		return 0, "", err
	}
	return event.Chain.Sequence, event.Chain.HMAC, nil
}

// appendLine writes one JSON line with a trailing newline and fsyncs.
func (l *Logger) appendLine(line []byte) error {
	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("audit: failed to sync log: %w", err)
	}
	return nil
}
