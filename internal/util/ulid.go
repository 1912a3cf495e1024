package util

import (
	"regexp"

	"github.com/oklog/ulid/v2"
)

// ulidPattern is Crockford's base32 alphabet, 26 characters.
var ulidPattern = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

// NewULID generates a new ULID string.
// ulid.Make draws from a process-wide monotonic entropy source and is safe for concurrent use,
// so ids created within the same millisecond still sort in creation order.
func NewULID() string {
	return ulid.Make().String()
}

// IsValidULID checks if the string is a canonical ULID.
func IsValidULID(s string) bool {
	if !ulidPattern.MatchString(s) {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
