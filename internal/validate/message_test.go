package validate

import (
	"strings"
	"testing"
)

func TestSanitizeMessage(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "How do statins work?", "How do statins work?"},
		{"trims whitespace", "  hello  ", "hello"},
		{"strips tags", "<script>alert(1)</script>hello <b>world</b>", "alert(1)hello world"},
		{"strips non ascii", "café résumé ❤", "caf rsum"},
		{"strips control chars", "line1\x00\x07line2", "line1line2"},
		{"newlines removed", "a\nb", "ab"},
		{"empty", "", ""},
		{"only markup", "<div></div>", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeMessage(tc.input); got != tc.want {
				t.Fatalf("SanitizeMessage(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeMessageCapsLength(t *testing.T) {
	long := strings.Repeat("a", MaxMessageLength+100)
	got := SanitizeMessage(long)
	if len(got) != MaxMessageLength {
		t.Fatalf("expected %d chars, got %d", MaxMessageLength, len(got))
	}
}
