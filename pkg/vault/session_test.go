package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/passfx/passfx/pkg/audit"
	"github.com/passfx/passfx/pkg/lockout"
	"github.com/passfx/passfx/pkg/storage"
)

var (
	testPassword  = []byte("Correct-Horse1!")
	wrongPassword = []byte("Wrong-Horse1!")
)

func newTestSession(t *testing.T, dir string) *Session {
	t.Helper()
	s, err := NewSession(Config{Dir: dir})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestVault(t *testing.T, dir string) *Session {
	t.Helper()
	s := newTestSession(t, dir)
	if err := s.Create(testPassword); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return s
}

func TestCreateUnlockCycle(t *testing.T) {
	dir := t.TempDir()

	s := createTestVault(t, dir)
	if s.State() != StateUnlocked {
		t.Fatalf("state after Create = %s, want unlocked", s.State())
	}

	added := []Record{
		NewEmailCredential("personal", "me@example.com", "pw-email", ""),
		NewPhoneCredential("mobile", "+15550100", "1234", ""),
		NewCreditCard("visa", "4111111111111111", "12/30", "123", "Ada Lovelace", ""),
		NewNoteEntry("wifi", "network password", ""),
		NewEnvEntry("prod", ".env", "API_KEY=abc", ""),
		NewRecoveryEntry("github", "aaaa-bbbb", ""),
	}
	for _, r := range added {
		if err := s.Add(r); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestSession(t, dir)
	if err := reopened.Unlock(wrongPassword); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Unlock with wrong password = %v, want ErrAuthentication", err)
	}
	if reopened.State() != StateLocked {
		t.Fatalf("state after failed unlock = %s, want locked", reopened.State())
	}

	if err := reopened.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	records, err := reopened.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != len(added) {
		t.Errorf("got %d records after reopen, want %d", len(records), len(added))
	}
	stats, err := reopened.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for _, k := range Kinds() {
		if stats[k] != 1 {
			t.Errorf("stats[%s] = %d, want 1", k, stats[k])
		}
	}
}

func TestCreateRefusesExistingVault(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	s.Lock()
	if err := s.Create(testPassword); !errors.Is(err, ErrVaultExists) {
		t.Errorf("second Create = %v, want ErrVaultExists", err)
	}
}

func TestOperationsRequireUnlocked(t *testing.T) {
	s := newTestSession(t, t.TempDir())

	r := NewNoteEntry("n", "c", "")
	checks := map[string]error{}
	checks["Add"] = s.Add(r)
	checks["Update"] = s.Update(r)
	checks["Delete"] = s.Delete(r.ID)
	_, err := s.Get(r.ID)
	checks["Get"] = err
	_, err = s.Records()
	checks["Records"] = err
	_, err = s.RecordsByKind(KindNote)
	checks["RecordsByKind"] = err
	_, err = s.Stats()
	checks["Stats"] = err
	_, err = s.Search("n")
	checks["Search"] = err
	_, err = s.Serialize()
	checks["Serialize"] = err
	_, err = s.Deserialize([]byte(`{"version":1,"records":[]}`), true)
	checks["Deserialize"] = err

	for op, err := range checks {
		if !errors.Is(err, ErrLocked) {
			t.Errorf("%s while locked = %v, want ErrLocked", op, err)
		}
	}
}

func TestLockWipesSession(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	if err := s.Add(NewNoteEntry("n", "c", "")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	s.Lock()
	if s.State() != StateLocked {
		t.Fatalf("state after Lock = %s, want locked", s.State())
	}
	if _, err := s.Records(); !errors.Is(err, ErrLocked) {
		t.Errorf("Records after Lock = %v, want ErrLocked", err)
	}
	s.Lock() // idempotent

	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock after Lock failed: %v", err)
	}
	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records after relock cycle, want 1", len(records))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := createTestVault(t, t.TempDir())

	e := NewEmailCredential("old-label", "me@example.com", "pw", "")
	if err := s.Add(e); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	created := e.CreatedAt

	e.Label = "new-label"
	if err := s.Update(e); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := s.Get(e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title() != "new-label" {
		t.Errorf("Title after update = %q, want new-label", got.Title())
	}
	if !got.Ref().CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update")
	}
	if !got.Ref().UpdatedAt.After(created) && !got.Ref().UpdatedAt.Equal(created) {
		t.Errorf("UpdatedAt went backwards")
	}

	if err := s.Delete(e.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(e.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get after delete = %v, want ErrRecordNotFound", err)
	}
	if err := s.Delete(e.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("second Delete = %v, want ErrRecordNotFound", err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestSession(t, dir)
	for i := 0; i < lockout.DefaultThreshold; i++ {
		if err := reopened.Unlock(wrongPassword); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("failure %d = %v, want ErrAuthentication", i+1, err)
		}
	}

	// The next attempt is refused before any key derivation.
	err := reopened.Unlock(testPassword)
	var locked *lockout.LockedOutError
	if !errors.As(err, &locked) {
		t.Fatalf("Unlock during lockout = %v, want LockedOutError", err)
	}
	if locked.Remaining <= 0 {
		t.Errorf("Remaining = %v, want positive", locked.Remaining)
	}
	if !errors.Is(err, lockout.ErrLockedOut) {
		t.Errorf("LockedOutError does not unwrap to ErrLockedOut")
	}
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestSession(t, dir)
	for i := 0; i < 2; i++ {
		if err := reopened.Unlock(wrongPassword); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("failure %d = %v, want ErrAuthentication", i+1, err)
		}
	}
	if n := reopened.FailureCount(); n != 2 {
		t.Errorf("FailureCount = %d, want 2", n)
	}
	if err := reopened.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if n := reopened.FailureCount(); n != 0 {
		t.Errorf("FailureCount after success = %d, want 0", n)
	}
}

func tamperSaltFile(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, storage.SaltFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read salt file: %v", err)
	}
	data[0] ^= 0x01
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write salt file: %v", err)
	}
}

func TestSaltTamperFailsClosed(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tamperSaltFile(t, dir)

	reopened := newTestSession(t, dir)
	if err := reopened.Unlock(testPassword); !errors.Is(err, storage.ErrSaltIntegrity) {
		t.Fatalf("Unlock with tampered salt = %v, want ErrSaltIntegrity", err)
	}
	if reopened.State() != StateLocked {
		t.Errorf("state after salt tamper = %s, want locked", reopened.State())
	}
	if n := reopened.FailureCount(); n != 1 {
		t.Errorf("FailureCount after salt tamper = %d, want 1", n)
	}
}

func TestBlobTamperFailsClosed(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Flip a ciphertext byte; the version byte stays intact so the
	// failure is an authentication failure, not a version mismatch.
	path := filepath.Join(dir, storage.VaultFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vault file: %v", err)
	}
	data[len(data)-1] ^= 0x01
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write vault file: %v", err)
	}

	reopened := newTestSession(t, dir)
	if err := reopened.Unlock(testPassword); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Unlock with tampered blob = %v, want ErrAuthentication", err)
	}
	if reopened.State() != StateLocked {
		t.Errorf("state after blob tamper = %s, want locked", reopened.State())
	}
	if n := reopened.FailureCount(); n != 1 {
		t.Errorf("FailureCount after blob tamper = %d, want 1", n)
	}
}

func TestCreateRecoversFromInterruptedCreation(t *testing.T) {
	dir := t.TempDir()

	// A salt with no payload in either slot is what a crash between
	// the salt write and the first vault save leaves behind.
	if _, err := storage.NewSaltStore(dir).Create(); err != nil {
		t.Fatalf("salt fixture: %v", err)
	}

	s := newTestSession(t, dir)
	if err := s.Create(testPassword); err != nil {
		t.Fatalf("Create over orphaned salt = %v, want success", err)
	}
	if err := s.Add(NewNoteEntry("n", "c", "")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestSession(t, dir)
	if err := reopened.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock after recovered Create failed: %v", err)
	}
}

func TestCreateRefusesBackupOnlyVault(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Primary gone but the backup slot still holds a payload the user
	// may want to recover by hand: the salt must survive.
	primary := filepath.Join(dir, storage.VaultFileName)
	if err := os.Rename(primary, filepath.Join(dir, storage.BackupFileName)); err != nil {
		t.Fatalf("rename to backup slot: %v", err)
	}

	reopened := newTestSession(t, dir)
	if err := reopened.Create(testPassword); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("Create with backup-only payload = %v, want ErrVaultExists", err)
	}
	if _, err := storage.NewSaltStore(dir).Load(); err != nil {
		t.Errorf("salt after refused Create: %v, want intact", err)
	}
}

func TestFailedUnlockStaysOutOfAuditChain(t *testing.T) {
	dir := t.TempDir()
	logger := audit.NewLogger(filepath.Join(dir, "audit"))
	s, err := NewSession(Config{Dir: dir, Audit: logger})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	if err := s.Create(testPassword); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.Lock()

	if err := s.Unlock(wrongPassword); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Unlock with wrong password = %v, want ErrAuthentication", err)
	}
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	// create, lock, unlock: the failed attempt adds no event and does
	// not break the chain.
	n, err := s.VerifyAuditLog()
	if err != nil {
		t.Fatalf("VerifyAuditLog failed: %v", err)
	}
	if n != 3 {
		t.Errorf("audit chain length = %d, want 3", n)
	}

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	for _, op := range []string{"unlock_failed", "locked_out"} {
		if strings.Contains(string(data), op) {
			t.Errorf("audit log contains %q event", op)
		}
	}
	if n := s.FailureCount(); n != 0 {
		t.Errorf("FailureCount after success = %d, want 0", n)
	}
}

func TestAutoLock(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSession(Config{Dir: dir, AutoLockTimeout: 5 * time.Minute})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()
	if err := s.Create(testPassword); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	base := time.Now()
	s.now = func() time.Time { return base }
	s.Touch()

	s.now = func() time.Time { return base.Add(4 * time.Minute) }
	if s.CheckAutoLock() {
		t.Error("CheckAutoLock locked before the timeout")
	}
	s.Touch() // activity resets the clock

	s.now = func() time.Time { return base.Add(8 * time.Minute) }
	if s.CheckAutoLock() {
		t.Error("CheckAutoLock ignored the Touch reset")
	}

	s.now = func() time.Time { return base.Add(10 * time.Minute) }
	if !s.CheckAutoLock() {
		t.Error("CheckAutoLock did not lock after the timeout")
	}
	if s.State() != StateLocked {
		t.Errorf("state after auto-lock = %s, want locked", s.State())
	}
	if s.CheckAutoLock() {
		t.Error("CheckAutoLock reported a second lock")
	}
}

func TestUnlockAsync(t *testing.T) {
	dir := t.TempDir()
	s := createTestVault(t, dir)
	s.Lock()

	pw := make([]byte, len(testPassword))
	copy(pw, testPassword)
	ch := s.UnlockAsync(pw)
	for i := range pw {
		pw[i] = 0 // caller may wipe immediately
	}

	select {
	case err := <-ch:
		if err != nil {
			t.Fatalf("UnlockAsync failed: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("UnlockAsync did not complete")
	}
	if s.State() != StateUnlocked {
		t.Errorf("state after async unlock = %s, want unlocked", s.State())
	}
}

func TestSubscribeLockState(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	var mu sync.Mutex
	var transitions []State
	s.SubscribeLockState(func(st State) {
		mu.Lock()
		transitions = append(transitions, st)
		mu.Unlock()
	})

	if err := s.Create(testPassword); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.Lock()

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || transitions[0] != StateUnlocked || transitions[1] != StateLocked {
		t.Errorf("transitions = %v, want [unlocked locked]", transitions)
	}
}

func TestSerializeDeserializeMerge(t *testing.T) {
	src := createTestVault(t, t.TempDir())
	a := NewEmailCredential("a", "a@b.c", "pw-a", "")
	b := NewNoteEntry("b", "content-b", "")
	for _, r := range []Record{a, b} {
		if err := src.Add(r); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	exported, err := src.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	dst := createTestVault(t, t.TempDir())
	if err := dst.Add(NewPhoneCredential("c", "+15550100", "1111", "")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	imported, err := dst.Deserialize(exported, true)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if imported != 2 {
		t.Errorf("imported = %d, want 2", imported)
	}

	// Records with known IDs are skipped on a second merge.
	imported, err = dst.Deserialize(exported, true)
	if err != nil {
		t.Fatalf("second Deserialize failed: %v", err)
	}
	if imported != 0 {
		t.Errorf("second merge imported = %d, want 0", imported)
	}

	records, err := dst.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records after merge, want 3", len(records))
	}
}

func TestDeserializeReplace(t *testing.T) {
	s := createTestVault(t, t.TempDir())
	if err := s.Add(NewNoteEntry("old", "gone after replace", "")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	incoming := NewSnapshot()
	if err := incoming.Add(NewNoteEntry("new", "fresh", "")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	data, err := incoming.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	imported, err := s.Deserialize(data, false)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if imported != 1 {
		t.Errorf("imported = %d, want 1", imported)
	}
	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 || records[0].Title() != "new" {
		t.Errorf("replace import left wrong records: %v", records)
	}
}

func TestSecondSessionRefused(t *testing.T) {
	dir := t.TempDir()
	_ = newTestSession(t, dir)
	if _, err := NewSession(Config{Dir: dir}); !errors.Is(err, storage.ErrAlreadyOpen) {
		t.Errorf("second NewSession = %v, want ErrAlreadyOpen", err)
	}
}
