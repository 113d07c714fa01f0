package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email cooper@endurance.space or call +1 (555) 123-9876, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "4242") {
		t.Fatalf("card digits leaked: %q", out)
	}
}

func TestRedactPIIKeys(t *testing.T) {
	out, changed := RedactPII("my key is sk-abcdefghijklmnop1234")
	if !changed || out != "my key is [REDACTED_KEY]" {
		t.Fatalf("RedactPII() = %q, %v", out, changed)
	}
}

func TestRedactPIIUnchanged(t *testing.T) {
	in := "Set humor to 60 percent."
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("RedactPII(%q) = %q, %v", in, out, changed)
	}
}
