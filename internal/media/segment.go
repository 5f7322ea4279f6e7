package media

import "regexp"

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateSegment accepts identifiers made only of ASCII letters, digits, '_' and '-'.
// Anything accepted is safe to use as a single path component; it is returned unchanged.
func ValidateSegment(raw string) (string, error) {
	if !segmentPattern.MatchString(raw) {
		return "", ErrInvalidSegment
	}
	return raw, nil
}
