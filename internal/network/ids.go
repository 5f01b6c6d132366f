package network

import (
	"regexp"
	"strings"
)

var trailingDigits = regexp.MustCompile(`^(.*?)(\d+)$`)

// canonicalWidths are the zero-padded suffix widths tried by NormalizeID.
var canonicalWidths = []int{3, 2}

// IDSet is the set of persona ids known to a run.
type IDSet map[string]struct{}

// NewIDSet builds an IDSet.
func NewIDSet(ids []string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is known.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// NormalizeID resolves id against known. An exact match wins. Otherwise, if
// id ends in a run of digits, the only variants tried are that number
// zero-padded to widths 3 and 2 and with its leading zeros stripped, keeping
// the prefix unchanged. Anything else is unresolved.
func NormalizeID(id string, known IDSet) (string, bool) {
	id = strings.TrimSpace(id)
	if known.Has(id) {
		return id, true
	}

	m := trailingDigits.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	prefix, digits := m[1], m[2]

	n := strings.TrimLeft(digits, "0")
	if n == "" {
		n = "0"
	}

	for _, w := range canonicalWidths {
		if len(n) > w {
			continue
		}
		if c := prefix + strings.Repeat("0", w-len(n)) + n; c != id && known.Has(c) {
			return c, true
		}
	}
	if c := prefix + n; c != id && known.Has(c) {
		return c, true
	}
	return "", false
}
