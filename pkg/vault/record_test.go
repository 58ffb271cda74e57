package vault

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNewRecordMetadata(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	e := NewEmailCredential("personal", "me@example.com", "hunter2", "")
	after := time.Now().UTC().Add(time.Second)

	if len(e.ID) != 8 {
		t.Errorf("ID length = %d, want 8", len(e.ID))
	}
	if e.CreatedAt.Before(before) || e.CreatedAt.After(after) {
		t.Errorf("CreatedAt %v outside expected window", e.CreatedAt)
	}
	if !e.CreatedAt.Equal(e.UpdatedAt) {
		t.Errorf("fresh record CreatedAt %v != UpdatedAt %v", e.CreatedAt, e.UpdatedAt)
	}
}

func TestRecordIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newRecordID()
		if seen[id] {
			t.Fatalf("duplicate ID after %d records: %s", i, id)
		}
		seen[id] = true
	}
}

func TestRecordKinds(t *testing.T) {
	records := []struct {
		r    Record
		kind Kind
	}{
		{NewEmailCredential("a", "a@b.c", "pw", ""), KindEmail},
		{NewPhoneCredential("a", "+15550100", "1234", ""), KindPhone},
		{NewCreditCard("a", "4111111111111111", "12/30", "123", "A B", ""), KindCard},
		{NewNoteEntry("a", "text", ""), KindNote},
		{NewEnvEntry("a", ".env", "KEY=val", ""), KindEnv},
		{NewRecoveryEntry("a", "code1 code2", ""), KindRecovery},
	}
	for _, tc := range records {
		if tc.r.Kind() != tc.kind {
			t.Errorf("%T Kind() = %s, want %s", tc.r, tc.r.Kind(), tc.kind)
		}
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	tests := []struct {
		name   string
		r      Record
		secret string
	}{
		{"email password", NewEmailCredential("personal", "me@example.com", "s3cr3t-pw", ""), "s3cr3t-pw"},
		{"phone pin", NewPhoneCredential("mobile", "+15550100", "9876", ""), "9876"},
		{"card cvv", NewCreditCard("visa", "4111111111111111", "12/30", "321", "A Body", ""), "321"},
		{"card number", NewCreditCard("visa", "4111111111111111", "12/30", "321", "A Body", ""), "4111111111111111"},
		{"note content", NewNoteEntry("wifi", "the-wifi-password", ""), "the-wifi-password"},
		{"env content", NewEnvEntry("prod", ".env", "API_KEY=abcdef", ""), "API_KEY=abcdef"},
		{"recovery content", NewRecoveryEntry("github", "code-one code-two", ""), "code-one code-two"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, out := range []string{
				fmt.Sprintf("%v", tc.r),
				fmt.Sprintf("%s", tc.r),
				fmt.Sprintf("%#v", tc.r),
			} {
				if strings.Contains(out, tc.secret) {
					t.Errorf("formatted record leaks secret: %s", out)
				}
			}
		})
	}
}

func TestMaskedNumber(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"4111111111111111", "**** **** **** 1111"},
		{"4111 1111 1111 1111", "**** **** **** 1111"},
		{"4111-1111-1111-1111", "**** **** **** 1111"},
		{"1234", "1234"},
		{"", ""},
	}
	for _, tc := range tests {
		c := &CreditCard{Number: tc.number}
		if got := c.MaskedNumber(); got != tc.want {
			t.Errorf("MaskedNumber(%q) = %q, want %q", tc.number, got, tc.want)
		}
	}
}
