package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// Parse normalizes an identifier supplied by a user. Surrounding whitespace
// is dropped and the canonical lowercase form is returned.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return u.String(), nil
}

// ParseSet parses a list of identifiers, dropping duplicates while keeping
// first-seen order.
func ParseSet(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, s := range ids {
		v, err := Parse(s)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// Short returns the first block of an identifier for compact display.
// "3f2a9c1e-...." -> "3f2a9c1e"
func Short(s string) string {
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}
