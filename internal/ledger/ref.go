package ledger

import (
	"strings"

	"golang.org/x/text/cases"
)

// RefKey is a normalised debt/settlement reference. Two references are equal
// when they match after trimming and Unicode case folding.
type RefKey string

// NewRefKey normalises raw.
func NewRefKey(raw string) RefKey {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	// Casers are stateful, so one is built per call.
	return RefKey(cases.Fold().String(trimmed))
}

// Empty reports whether the key carries no reference.
func (k RefKey) Empty() bool {
	return k == ""
}

// Matches reports whether raw normalises to k.
func (k RefKey) Matches(raw string) bool {
	return k == NewRefKey(raw)
}

func (k RefKey) String() string {
	return string(k)
}
