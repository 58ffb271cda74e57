package vault

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeQuery folds a search term to its NFKC form in lower case so
// visually equivalent Unicode spellings compare equal.
func normalizeQuery(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Search scans the non-sensitive fields of every record for the query,
// case-insensitively. Passwords, PINs, card numbers, CVVs, and
// recovery or env content are never matched. Results are ordered by
// ID. An empty query matches nothing. No I/O is performed.
func (s *Session) Search(query string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}

	q := normalizeQuery(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var matches []Record
	for _, r := range s.snapshot.Records() {
		for _, field := range r.searchText() {
			if strings.Contains(normalizeQuery(field), q) {
				matches = append(matches, r)
				break
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Ref().ID < matches[j].Ref().ID })
	return matches, nil
}
