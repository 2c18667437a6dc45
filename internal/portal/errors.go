package portal

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Host error text arrives as multi-line blobs with record ids and
// stack noise. These patterns pull out the short human reason for the
// failures users actually hit.
var (
	addressPattern       = regexp.MustCompile(`(?i)address.{0,40}(invalid|not valid|could not be validated|validation)`)
	missingFieldPattern  = regexp.MustCompile(`(?i)please enter value\(s\) for:?\s*([^\n.]+)`)
	requiredFieldPattern = regexp.MustCompile(`(?i)([A-Za-z ]{2,40}) is (a )?required( field)?`)
)

const maxMessageLen = 140

// CleanHostMessage reduces a raw host rejection to a short reason
// suitable for the portal's failure list.
func CleanHostMessage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "The record could not be saved."
	}

	if addressPattern.MatchString(raw) {
		return "The customer address failed validation; correct the address on the order and retry."
	}
	if m := missingFieldPattern.FindStringSubmatch(raw); m != nil {
		return "Missing required field(s): " + strings.TrimSpace(m[1])
	}
	if m := requiredFieldPattern.FindStringSubmatch(raw); m != nil {
		return "Missing required field: " + strings.TrimSpace(m[1])
	}

	line := raw
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxMessageLen {
		cut := maxMessageLen - 3
		// Host text is not ASCII-only; back up to a rune boundary so
		// the cut never splits a multi-byte character.
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut] + "..."
	}
	return line
}
