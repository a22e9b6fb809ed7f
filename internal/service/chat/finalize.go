package chat

import "strings"

// finalizedMarker opens every completed script the intake prompt produces.
const finalizedMarker = "FINALIZED SCRIPT"

// IsFinalized reports whether a model reply is a completed script: after
// skipping any leading characters that are not ASCII letters or digits,
// the text must begin with the marker, case-sensitive. A marker appearing
// later in the reply does not count.
func IsFinalized(text string) bool {
	i := 0
	for i < len(text) {
		c := text[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			break
		}
		i++
	}
	return strings.HasPrefix(text[i:], finalizedMarker)
}
