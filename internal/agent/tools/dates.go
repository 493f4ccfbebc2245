package tools

import (
	"fmt"
	"regexp"
)

var leadingYear = regexp.MustCompile(`^(\d{4})(\D|$)`)

// PinYear rewrites a leading four digit year to year and leaves the rest of
// s untouched. Strings without a leading year are returned unchanged.
//
//	PinYear("2024-12-31", 2026)                -> "2026-12-31"
//	PinYear("2026-06-15T10:00:00+03:00", 2026) -> unchanged
//	PinYear("tomorrow", 2026)                  -> unchanged
func PinYear(s string, year int) string {
	if year <= 0 || !leadingYear.MatchString(s) {
		return s
	}
	return fmt.Sprintf("%04d", year) + s[4:]
}
