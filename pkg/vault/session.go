package vault

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/passfx/passfx/pkg/audit"
	"github.com/passfx/passfx/pkg/crypto"
	"github.com/passfx/passfx/pkg/lockout"
	"github.com/passfx/passfx/pkg/storage"
)

// State is the session lock state.
type State int

const (
	// StateLocked means no key material is resident.
	StateLocked State = iota
	// StateUnlocking means key derivation is in progress.
	StateUnlocking
	// StateUnlocked means the master key and snapshot are resident.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds session construction parameters.
type Config struct {
	// Dir is the vault directory (created 0700 if missing).
	Dir string

	// AutoLockTimeout locks the session after this much inactivity.
	// Zero disables auto-lock.
	AutoLockTimeout time.Duration

	// LockoutThreshold and MaxLockoutSeconds configure the failed
	// unlock guard; zero values use the guard defaults.
	LockoutThreshold  int
	MaxLockoutSeconds int

	// Audit receives tamper-evident operation events when non-nil.
	Audit *audit.Logger
}

// Session owns the vault lifecycle: Locked -> Unlocking -> Unlocked.
// Every operation that touches records or key material checks the
// state first, and every failure path returns the session to Locked
// with the key wiped.
type Session struct {
	mu           sync.Mutex
	state        State
	store        *storage.BlobStore
	salts        *storage.SaltStore
	guard        *lockout.Guard
	audit        *audit.Logger
	key          *crypto.SecretBuffer
	snapshot     *Snapshot
	autoLock     time.Duration
	lastActivity time.Time
	subscribers  []func(State)

	// now is replaceable for tests.
	now func() time.Time
}

// NewSession opens the vault directory and acquires the single-writer
// lock. It does not unlock the vault. storage.ErrAlreadyOpen is
// returned when another process holds the vault open.
func NewSession(cfg Config) (*Session, error) {
	store, err := storage.OpenBlobStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	guard := lockout.NewGuard(cfg.Dir, lockout.Config{
		Threshold:         cfg.LockoutThreshold,
		MaxLockoutSeconds: cfg.MaxLockoutSeconds,
	})
	return &Session{
		state:    StateLocked,
		store:    store,
		salts:    storage.NewSaltStore(cfg.Dir),
		guard:    guard,
		audit:    cfg.Audit,
		autoLock: cfg.AutoLockTimeout,
		now:      time.Now,
	}, nil
}

// State returns the current lock state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exists reports whether a vault has been initialized in the directory.
func (s *Session) Exists() bool {
	return s.store.Exists() && s.salts.Exists()
}

// SubscribeLockState registers a callback invoked on every state
// transition. Callbacks run outside the session's critical section and
// must not assume ordering against concurrent operations.
func (s *Session) SubscribeLockState(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Session) notify(state State) {
	s.mu.Lock()
	subs := make([]func(State), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// Create initializes a new vault: fresh salt, derived key, and an
// empty encrypted snapshot. The session is Unlocked on success.
func (s *Session) Create(password []byte) error {
	s.mu.Lock()

	if s.state != StateLocked {
		s.mu.Unlock()
		return ErrUnlockInProgress
	}
	if s.store.Exists() || s.store.BackupExists() {
		s.mu.Unlock()
		return ErrVaultExists
	}
	if s.salts.Exists() {
		// A salt with no payload in either slot is debris from an
		// interrupted creation; nothing is derivable from it alone.
		if err := s.salts.Remove(); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	salt, err := s.salts.Create()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	key, err := crypto.DeriveKey(password, salt)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.key = crypto.NewSecretBuffer(key)
	s.snapshot = NewSnapshot()
	if err := s.persist(); err != nil {
		// No payload reached disk, so the fresh salt is rolled back;
		// leaving it would make every retry fail with ErrVaultExists.
		if rmErr := s.salts.Remove(); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", rmErr)
		}
		s.wipe()
		s.mu.Unlock()
		return err
	}
	if err := s.guard.RecordSuccess(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to reset lockout state: %v\n", err)
	}

	s.setAuditKey()
	s.state = StateUnlocked
	s.lastActivity = s.now()
	s.auditLog(audit.OpVaultCreate, audit.ResultSuccess, nil)
	s.mu.Unlock()
	s.notify(StateUnlocked)
	return nil
}

// Unlock derives the master key from password and loads the snapshot.
// The lockout guard is consulted before any cryptography: a locked-out
// caller gets lockout.LockedOutError without costing a derivation.
// All authentication-category failures (missing vault, corrupt blob,
// wrong password) count a failure and return ErrAuthentication.
func (s *Session) Unlock(password []byte) error {
	s.mu.Lock()
	switch s.state {
	case StateUnlocked:
		s.mu.Unlock()
		return nil
	case StateUnlocking:
		s.mu.Unlock()
		return ErrUnlockInProgress
	}
	s.state = StateUnlocking
	s.mu.Unlock()
	s.notify(StateUnlocking)

	if err := s.guard.CheckLocked(); err != nil {
		s.failUnlock(false)
		return err
	}

	res, err := s.deriveAndLoad(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateUnlocking {
		// Lock() raced the async unlock; discard the result.
		s.mu.Unlock()
		res.key.Destroy()
		return ErrLocked
	}
	s.key = res.key
	s.snapshot = res.snapshot
	s.state = StateUnlocked
	s.lastActivity = s.now()
	if err := s.guard.RecordSuccess(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to reset lockout state: %v\n", err)
	}
	s.setAuditKey()
	s.auditLog(audit.OpVaultUnlock, audit.ResultSuccess, nil)
	s.mu.Unlock()
	s.notify(StateUnlocked)
	return nil
}

// unlockResult carries the derived key and decoded snapshot from the
// slow path, which runs without the session mutex held.
type unlockResult struct {
	key      *crypto.SecretBuffer
	snapshot *Snapshot
}

func (s *Session) deriveAndLoad(password []byte) (*unlockResult, error) {
	salt, err := s.salts.Load()
	if err != nil {
		if errors.Is(err, storage.ErrSaltIntegrity) {
			s.failUnlock(true)
			return nil, err
		}
		s.failUnlock(true)
		return nil, ErrAuthentication
	}

	keyBytes, err := crypto.DeriveKey(password, salt)
	if err != nil {
		s.failUnlock(false)
		return nil, err
	}
	key := crypto.NewSecretBuffer(keyBytes)

	token, err := s.store.Load()
	if err != nil {
		key.Destroy()
		if errors.Is(err, storage.ErrFatalCorruption) || errors.Is(err, storage.ErrSymlinkRejected) {
			s.failUnlock(false)
			return nil, err
		}
		s.failUnlock(true)
		return nil, ErrAuthentication
	}

	plain, err := crypto.Open(key.Bytes(), token)
	if err != nil {
		key.Destroy()
		s.failUnlock(true)
		if errors.Is(err, crypto.ErrUnsupportedVersion) {
			return nil, err
		}
		return nil, ErrAuthentication
	}

	snap, err := DecodeSnapshot(plain)
	crypto.SecureWipe(plain)
	if err != nil {
		key.Destroy()
		s.failUnlock(true)
		return nil, ErrAuthentication
	}
	return &unlockResult{key: key, snapshot: snap}, nil
}

// failUnlock returns the session to Locked after a failed unlock,
// optionally counting the failure against the lockout guard. The
// failure is not audit-logged: the MAC key derives from the master key
// and does not exist while locked, so the lockout state file is the
// durable record of failed attempts.
func (s *Session) failUnlock(countFailure bool) {
	if countFailure {
		if err := s.guard.RecordFailure(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to persist lockout state: %v\n", err)
		}
	}
	s.mu.Lock()
	if s.state == StateUnlocking {
		s.state = StateLocked
	}
	s.mu.Unlock()
	s.notify(StateLocked)
}

// UnlockAsync runs Unlock in a goroutine so the slow key derivation
// stays off the caller's loop. The result arrives on the returned
// channel; an abandoned unlock is discarded when Lock() wins the race.
func (s *Session) UnlockAsync(password []byte) <-chan error {
	// Own copy: the caller may wipe its buffer immediately.
	pw := make([]byte, len(password))
	copy(pw, password)

	ch := make(chan error, 1)
	go func() {
		err := s.Unlock(pw)
		crypto.SecureWipe(pw)
		ch <- err
	}()
	return ch
}

// Lock wipes the master key, drops the snapshot, and transitions to
// Locked. Idempotent; safe to call from signal handlers and deferred
// exit paths.
func (s *Session) Lock() {
	s.mu.Lock()
	if s.state == StateLocked {
		s.mu.Unlock()
		return
	}
	s.auditLog(audit.OpVaultLock, audit.ResultSuccess, nil)
	s.wipe()
	s.state = StateLocked
	s.mu.Unlock()
	s.notify(StateLocked)
}

// wipe destroys resident key material. Caller holds s.mu.
func (s *Session) wipe() {
	if s.key != nil {
		s.key.Destroy()
		s.key = nil
	}
	s.snapshot = nil
	if s.audit != nil {
		s.audit.Clear()
	}
}

// Touch resets the inactivity clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnlocked {
		s.lastActivity = s.now()
	}
}

// CheckAutoLock locks the session when the inactivity timeout has
// elapsed. It reports whether this call performed the lock.
func (s *Session) CheckAutoLock() bool {
	s.mu.Lock()
	if s.state != StateUnlocked || s.autoLock <= 0 || s.now().Sub(s.lastActivity) < s.autoLock {
		s.mu.Unlock()
		return false
	}
	s.auditLog(audit.OpVaultAutoLock, audit.ResultSuccess, nil)
	s.wipe()
	s.state = StateLocked
	s.mu.Unlock()
	s.notify(StateLocked)
	return true
}

// requireUnlocked must be called with s.mu held.
func (s *Session) requireUnlocked() error {
	if s.state != StateUnlocked {
		return ErrLocked
	}
	return nil
}

// persist encodes, encrypts, and saves the snapshot. Caller holds
// s.mu. The plaintext buffer is wiped before returning.
func (s *Session) persist() error {
	plain, err := s.snapshot.Encode()
	if err != nil {
		return err
	}
	token, err := crypto.Seal(s.key.Bytes(), plain)
	crypto.SecureWipe(plain)
	if err != nil {
		return err
	}
	return s.store.Save(token)
}

// Add inserts a record and commits the snapshot in one critical
// section. On save failure the in-memory change is retained and the
// on-disk vault stays at its last committed version.
func (s *Session) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if err := s.snapshot.Add(r); err != nil {
		return err
	}
	s.lastActivity = s.now()
	if err := s.persist(); err != nil {
		return err
	}
	s.auditLog(audit.OpRecordAdd, audit.ResultSuccess, map[string]string{"record": r.Ref().ID, "kind": string(r.Kind())})
	return nil
}

// Update replaces the record with the same ID, bumping UpdatedAt.
func (s *Session) Update(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	r.Ref().UpdatedAt = s.now().UTC()
	if err := s.snapshot.Update(r); err != nil {
		return err
	}
	s.lastActivity = s.now()
	if err := s.persist(); err != nil {
		return err
	}
	s.auditLog(audit.OpRecordUpdate, audit.ResultSuccess, map[string]string{"record": r.Ref().ID, "kind": string(r.Kind())})
	return nil
}

// Delete removes the record with the given ID.
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if err := s.snapshot.Delete(id); err != nil {
		return err
	}
	s.lastActivity = s.now()
	if err := s.persist(); err != nil {
		return err
	}
	s.auditLog(audit.OpRecordDelete, audit.ResultSuccess, map[string]string{"record": id})
	return nil
}

// Get returns the record with the given ID.
func (s *Session) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	r, ok := s.snapshot.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return r, nil
}

// Records returns all records sorted by ID.
func (s *Session) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	return s.snapshot.Records(), nil
}

// RecordsByKind returns the records of one kind sorted by ID.
func (s *Session) RecordsByKind(k Kind) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	return s.snapshot.RecordsByKind(k), nil
}

// Stats returns the record count per kind.
func (s *Session) Stats() (map[Kind]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	return s.snapshot.Stats(), nil
}

// Serialize returns the plaintext snapshot wire form for export. The
// caller owns the buffer and should wipe it when done. Rejected while
// locked.
func (s *Session) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	data, err := s.snapshot.Encode()
	if err != nil {
		return nil, err
	}
	s.auditLog(audit.OpVaultExport, audit.ResultSuccess, nil)
	return data, nil
}

// Deserialize imports a serialized snapshot. With merge set, records
// whose IDs already exist are skipped; otherwise the snapshot is
// replaced wholesale. Returns the number of records imported.
func (s *Session) Deserialize(data []byte, merge bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return 0, err
	}
	incoming, err := DecodeSnapshot(data)
	if err != nil {
		return 0, err
	}

	var imported int
	if merge {
		for _, r := range incoming.Records() {
			if _, exists := s.snapshot.Get(r.Ref().ID); exists {
				continue
			}
			if err := s.snapshot.Add(r); err != nil {
				return imported, err
			}
			imported++
		}
	} else {
		s.snapshot = incoming
		imported = incoming.Len()
	}

	s.lastActivity = s.now()
	if err := s.persist(); err != nil {
		return imported, err
	}
	s.auditLog(audit.OpVaultImport, audit.ResultSuccess, map[string]string{"imported": fmt.Sprintf("%d", imported)})
	return imported, nil
}

// NoteBackup records a backup event in the audit log. It must run
// while the session is still unlocked, since the audit key is wiped
// on lock. A restore cannot be audited at all: it runs without the
// master key.
func (s *Session) NoteBackup(recordCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return
	}
	s.auditLog(audit.OpVaultBackup, audit.ResultSuccess, map[string]string{"records": fmt.Sprintf("%d", recordCount)})
}

// Close locks the session and releases the vault directory lock.
func (s *Session) Close() error {
	s.Lock()
	return s.store.Close()
}

// FailureCount exposes the guard's current failure count for status
// displays.
func (s *Session) FailureCount() int {
	n, err := s.guard.FailureCount()
	if err != nil {
		return 0
	}
	return n
}

// VerifyAuditLog walks the audit chain. The MAC key comes from the
// master key, so the session must be unlocked.
func (s *Session) VerifyAuditLog() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return 0, err
	}
	if s.audit == nil {
		return 0, nil
	}
	return s.audit.Verify()
}

// setAuditKey derives the audit MAC key from the master key. Caller
// holds s.mu with s.key set.
func (s *Session) setAuditKey() {
	if s.audit == nil {
		return
	}
	if err := s.audit.SetKey(s.key.Bytes()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit logging unavailable: %v\n", err)
	}
}

// auditLog writes an audit event best-effort; audit failures never
// block vault operations.
func (s *Session) auditLog(op, result string, ctx map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(op, result, ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit log write failed: %v\n", err)
	}
}
