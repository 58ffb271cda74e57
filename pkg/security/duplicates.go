// Package security provides privacy-preserving health checks over an
// unlocked record set. Secret values are compared through HMAC-SHA256
// with a random session-local key, so no plaintext and no offline-
// guessable digest ever leaves the check.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/passfx/passfx/pkg/vault"
)

// DuplicateGroup is a set of records sharing the same secret value.
type DuplicateGroup struct {
	// IDs are the record IDs in the group, ordered.
	IDs []string `json:"ids"`
	// Titles are the matching record labels/titles, aligned with IDs.
	Titles []string `json:"titles"`
	// Count is the group size.
	Count int `json:"count"`
}

// Checker runs health checks with a session-local comparison key. The
// key is random per Checker and never persisted.
type Checker struct {
	hmacKey []byte
}

// NewChecker creates a checker with a fresh comparison key.
func NewChecker() (*Checker, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: failed to generate comparison key: %w", err)
	}
	return &Checker{hmacKey: key}, nil
}

// FindDuplicates groups records that reuse the same secret value
// (passwords, PINs, card numbers). Groups are sorted largest first;
// limit > 0 truncates the result.
func (c *Checker) FindDuplicates(records []vault.Record, limit int) []DuplicateGroup {
	type occurrence struct {
		id, title string
	}
	byHash := make(map[string][]occurrence)
	for _, r := range records {
		value := strings.TrimSpace(secretValue(r))
		if value == "" {
			continue
		}
		h := c.valueHash(value)
		byHash[h] = append(byHash[h], occurrence{id: r.Ref().ID, title: r.Title()})
	}

	var groups []DuplicateGroup
	for _, occ := range byHash {
		if len(occ) <= 1 {
			continue
		}
		sort.Slice(occ, func(i, j int) bool { return occ[i].id < occ[j].id })
		g := DuplicateGroup{Count: len(occ)}
		for _, o := range occ {
			g.IDs = append(g.IDs, o.id)
			g.Titles = append(g.Titles, o.title)
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].IDs[0] < groups[j].IDs[0]
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// secretValue extracts the comparable secret of a record. Free-form
// content (notes, env files, recovery codes) is not comparable and is
// skipped.
func secretValue(r vault.Record) string {
	switch v := r.(type) {
	case *vault.EmailCredential:
		return v.Password
	case *vault.PhoneCredential:
		return v.PIN
	case *vault.CreditCard:
		return v.Number
	default:
		return ""
	}
}

func (c *Checker) valueHash(value string) string {
	h := hmac.New(sha256.New, c.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
