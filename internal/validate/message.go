package validate

import (
	"regexp"
	"strings"
)

// MaxMessageLength caps chat input; anything longer is cut, not rejected,
// matching the web client's behavior.
const MaxMessageLength = 4000

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeMessage normalizes raw chat input before it reaches the
// conversation engine: markup stripped, printable ASCII only, trimmed,
// capped. An empty result means the input was unusable.
func SanitizeMessage(input string) string {
	out := tagPattern.ReplaceAllString(input, "")
	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	out = strings.TrimSpace(b.String())
	if len(out) > MaxMessageLength {
		out = out[:MaxMessageLength]
	}
	return out
}
