package brain

import (
	"regexp"
	"strings"
)

// Lead filler and acknowledgment patterns removed from model output so the
// injected hesitation is the only one spoken.
var (
	leadAckRe    = regexp.MustCompile(`(?is)^\s*(?:sure|okay|ok|alright|all right|got it|absolutely|yes|yep|yeah|certainly|of course|right|well|hmm+|mmhm|mm\s*hmm+|uh+|um+|err+|ah+)(?:(?:\s*[\p{P}]+\s*)+|\s+$|$)`)
	leadFillerRe = regexp.MustCompile(`(?is)^\s*(?:give me(?: just)? a (?:second|sec)(?: while i think| to think)?|just a (?:second|sec)|one (?:second|sec)(?: while i think)?|give me(?: just)? a moment(?: while i think| to think)?|just a moment|one moment|hold on|hang on|let me think(?: for a (?:second|moment))?|let me see|let's see|while i think|how should i put this)(?:(?:\s*[\p{P}]+\s*)+|\s+$|$)`)
)

func stripLeadFiller(raw string) string {
	out := raw
	for i := 0; i < 4; i++ {
		next := leadFillerRe.ReplaceAllString(out, "")
		if next == out {
			return out
		}
		out = next
	}
	return out
}

// stripLeadPreamble removes leading filler phrases, and acknowledgments that
// are immediately followed by filler. A bare "Yes, ..." answer is kept.
func stripLeadPreamble(raw string) string {
	out := raw
	for i := 0; i < 4; i++ {
		next := stripLeadFiller(out)
		if stripped, changed := stripLeadAckThenFiller(next); changed {
			next = stripped
		}
		if stripped, changed := stripLeadHesitationSound(next); changed {
			next = stripped
		}
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(out)
}

func stripLeadAckThenFiller(raw string) (string, bool) {
	m := leadAckRe.FindStringIndex(raw)
	if len(m) != 2 || m[0] != 0 {
		return raw, false
	}
	rest := raw[m[1]:]
	stripped := stripLeadFiller(rest)
	if stripped == rest {
		return raw, false
	}
	return stripped, true
}

var leadHesitationSoundRe = regexp.MustCompile(`(?i)^\s*(?:hmm+|um+|uh+|err+|ah+)(?:\s*[.,…-]+\s*|\s+)`)

// stripLeadHesitationSound drops a leading "hmm..."-style sound, which is
// never a meaningful answer on its own.
func stripLeadHesitationSound(raw string) (string, bool) {
	loc := leadHesitationSoundRe.FindStringIndex(raw)
	if loc == nil {
		return raw, false
	}
	return raw[loc[1]:], true
}
