// Package vault implements the encrypted credential store: the record
// model, the serialized snapshot, and the session state machine that
// guards every operation behind the master key.
//
// # Security Features
//
//   - All cryptographic operations require an unlocked session; the
//     locked check happens before any key material is touched
//   - Sensitive fields (passwords, PINs, card numbers, CVVs, recovery
//     and env content) are redacted from String()/GoString() so no
//     fmt path can leak them
//   - The master key and serialized plaintext are wiped on lock
package vault

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the six record variants. The set is closed:
// decode rejects any other tag.
type Kind string

const (
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindCard     Kind = "card"
	KindNote     Kind = "note"
	KindEnv      Kind = "env"
	KindRecovery Kind = "recovery"
)

// Kinds lists every record kind in display order.
func Kinds() []Kind {
	return []Kind{KindEmail, KindPhone, KindCard, KindNote, KindEnv, KindRecovery}
}

// Meta carries the fields shared by every record variant.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is the closed interface over the six credential variants.
// Only types in this package implement it.
type Record interface {
	// Kind returns the variant tag used on the wire.
	Kind() Kind
	// Ref returns the shared metadata for in-place updates.
	Ref() *Meta
	// Title returns the human-facing label or title of the record.
	Title() string

	// searchText returns the non-sensitive fields eligible for search.
	// Secrets (passwords, PINs, numbers, CVVs, protected content) are
	// never included.
	searchText() []string

	sealedRecord()
}

// newRecordID returns a short unique identifier. Eight hex characters
// of a random UUID keep IDs easy to type while collisions stay
// negligible at single-vault scale.
func newRecordID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func newMeta() Meta {
	now := time.Now().UTC()
	return Meta{ID: newRecordID(), CreatedAt: now, UpdatedAt: now}
}

// EmailCredential stores an email/password login.
type EmailCredential struct {
	Meta
	Label    string `json:"label"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
}

// NewEmailCredential creates an email credential with a fresh ID.
func NewEmailCredential(label, email, password, notes string) *EmailCredential {
	return &EmailCredential{Meta: newMeta(), Label: label, Email: email, Password: password, Notes: notes}
}

func (e *EmailCredential) Kind() Kind    { return KindEmail }
func (e *EmailCredential) Ref() *Meta    { return &e.Meta }
func (e *EmailCredential) Title() string { return e.Label }
func (e *EmailCredential) searchText() []string {
	return []string{e.Label, e.Email, e.Notes}
}
func (e *EmailCredential) sealedRecord() {}

// String redacts the password.
func (e *EmailCredential) String() string {
	return "EmailCredential{id=" + e.ID + ", label=" + e.Label + ", email=" + e.Email + ", password=[REDACTED]}"
}

// GoString redacts the password from %#v formatting.
func (e *EmailCredential) GoString() string { return e.String() }

// PhoneCredential stores a phone number protected by a PIN.
type PhoneCredential struct {
	Meta
	Label string `json:"label"`
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
	Notes string `json:"notes,omitempty"`
}

// NewPhoneCredential creates a phone credential with a fresh ID.
func NewPhoneCredential(label, phone, pin, notes string) *PhoneCredential {
	return &PhoneCredential{Meta: newMeta(), Label: label, Phone: phone, PIN: pin, Notes: notes}
}

func (p *PhoneCredential) Kind() Kind    { return KindPhone }
func (p *PhoneCredential) Ref() *Meta    { return &p.Meta }
func (p *PhoneCredential) Title() string { return p.Label }
func (p *PhoneCredential) searchText() []string {
	return []string{p.Label, p.Phone, p.Notes}
}
func (p *PhoneCredential) sealedRecord() {}

func (p *PhoneCredential) String() string {
	return "PhoneCredential{id=" + p.ID + ", label=" + p.Label + ", phone=" + p.Phone + ", pin=[REDACTED]}"
}

func (p *PhoneCredential) GoString() string { return p.String() }

// CreditCard stores payment card details.
type CreditCard struct {
	Meta
	Label  string `json:"label"`
	Number string `json:"card_number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
	Holder string `json:"cardholder_name"`
	Notes  string `json:"notes,omitempty"`
}

// NewCreditCard creates a credit card record with a fresh ID.
func NewCreditCard(label, number, expiry, cvv, holder, notes string) *CreditCard {
	return &CreditCard{Meta: newMeta(), Label: label, Number: number, Expiry: expiry, CVV: cvv, Holder: holder, Notes: notes}
}

func (c *CreditCard) Kind() Kind    { return KindCard }
func (c *CreditCard) Ref() *Meta    { return &c.Meta }
func (c *CreditCard) Title() string { return c.Label }
func (c *CreditCard) searchText() []string {
	return []string{c.Label, c.Holder, c.Notes}
}
func (c *CreditCard) sealedRecord() {}

// MaskedNumber returns the card number with all but the last four
// digits replaced, for list and show views.
func (c *CreditCard) MaskedNumber() string {
	digits := strings.ReplaceAll(strings.ReplaceAll(c.Number, " ", ""), "-", "")
	if len(digits) <= 4 {
		return digits
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

func (c *CreditCard) String() string {
	return "CreditCard{id=" + c.ID + ", label=" + c.Label + ", number=" + c.MaskedNumber() + ", cvv=[REDACTED]}"
}

func (c *CreditCard) GoString() string { return c.String() }

// NoteEntry stores free-form secure text.
type NoteEntry struct {
	Meta
	NoteTitle string `json:"title"`
	Content   string `json:"content"`
	Notes     string `json:"notes,omitempty"`
}

// NewNoteEntry creates a secure note with a fresh ID.
func NewNoteEntry(title, content, notes string) *NoteEntry {
	return &NoteEntry{Meta: newMeta(), NoteTitle: title, Content: content, Notes: notes}
}

func (n *NoteEntry) Kind() Kind    { return KindNote }
func (n *NoteEntry) Ref() *Meta    { return &n.Meta }
func (n *NoteEntry) Title() string { return n.NoteTitle }
func (n *NoteEntry) searchText() []string {
	return []string{n.NoteTitle, n.Notes}
}
func (n *NoteEntry) sealedRecord() {}

func (n *NoteEntry) String() string {
	return "NoteEntry{id=" + n.ID + ", title=" + n.NoteTitle + ", content=[REDACTED]}"
}

func (n *NoteEntry) GoString() string { return n.String() }

// EnvEntry stores the contents of an environment file.
type EnvEntry struct {
	Meta
	EnvTitle string `json:"title"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Notes    string `json:"notes,omitempty"`
}

// NewEnvEntry creates an env file record with a fresh ID.
func NewEnvEntry(title, filename, content, notes string) *EnvEntry {
	return &EnvEntry{Meta: newMeta(), EnvTitle: title, Filename: filename, Content: content, Notes: notes}
}

func (e *EnvEntry) Kind() Kind    { return KindEnv }
func (e *EnvEntry) Ref() *Meta    { return &e.Meta }
func (e *EnvEntry) Title() string { return e.EnvTitle }
func (e *EnvEntry) searchText() []string {
	return []string{e.EnvTitle, e.Filename, e.Notes}
}
func (e *EnvEntry) sealedRecord() {}

func (e *EnvEntry) String() string {
	return "EnvEntry{id=" + e.ID + ", title=" + e.EnvTitle + ", filename=" + e.Filename + ", content=[REDACTED]}"
}

func (e *EnvEntry) GoString() string { return e.String() }

// RecoveryEntry stores recovery codes for an external account.
type RecoveryEntry struct {
	Meta
	RecTitle string `json:"title"`
	Content  string `json:"content"`
	Notes    string `json:"notes,omitempty"`
}

// NewRecoveryEntry creates a recovery codes record with a fresh ID.
func NewRecoveryEntry(title, content, notes string) *RecoveryEntry {
	return &RecoveryEntry{Meta: newMeta(), RecTitle: title, Content: content, Notes: notes}
}

func (r *RecoveryEntry) Kind() Kind    { return KindRecovery }
func (r *RecoveryEntry) Ref() *Meta    { return &r.Meta }
func (r *RecoveryEntry) Title() string { return r.RecTitle }
func (r *RecoveryEntry) searchText() []string {
	return []string{r.RecTitle, r.Notes}
}
func (r *RecoveryEntry) sealedRecord() {}

func (r *RecoveryEntry) String() string {
	return "RecoveryEntry{id=" + r.ID + ", title=" + r.RecTitle + ", content=[REDACTED]}"
}

func (r *RecoveryEntry) GoString() string { return r.String() }
