package voice

import (
	"regexp"
	"strings"
	"unicode"
)

type speechRule struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order; code and links go before the bare-URL pass.
var speechRules = []speechRule{
	{regexp.MustCompile(`(?i)^\s*(?:tars|assistant)\s*:\s*`), ""},
	{regexp.MustCompile("(?s)```.*?```"), " "},
	{regexp.MustCompile("`[^`]*`"), " "},
	{regexp.MustCompile(`\[(.*?)\]\((.*?)\)`), "$1"},
	{regexp.MustCompile(`https?://\S+`), " "},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	// stage directions: "*whirrs*", "*beep boop*"
	{regexp.MustCompile(`\*[^*\n]{1,40}\*\s*`), ""},
}

var speechSymbolReplacer = strings.NewReplacer(
	"*", " ", "_", " ", "\\", " ", "/", " ", "|", " ",
	"#", " ", "~", " ", "<", " ", ">", " ",
)

// sanitizeSpeechText turns display text into something a TTS engine reads
// naturally. Markdown, links, code, emoji and stage directions are dropped.
func sanitizeSpeechText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, rule := range speechRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return collapseSpeechRunes(speechSymbolReplacer.Replace(s))
}

// collapseSpeechRunes drops symbols and joiners, turns unspoken punctuation
// into spaces and squeezes whitespace runs.
func collapseSpeechRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	gap := func() {
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	for _, r := range s {
		switch {
		case r == '\u200d', r == '\ufe0f', r == '\u20e3', unicode.IsControl(r) && !unicode.IsSpace(r):
		case unicode.IsSpace(r):
			gap()
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
		case unicode.IsPunct(r) && !strings.ContainsRune(`.,!?:;'"-()`, r):
			gap()
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}
