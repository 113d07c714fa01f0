package voice

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// Kind tags the representation carried by a Payload.
type Kind int

const (
	KindPlain Kind = iota
	KindAnnotated
)

func (k Kind) String() string {
	switch k {
	case KindAnnotated:
		return "annotated"
	default:
		return "plain"
	}
}

// Payload is what the generator hands to the synthesizer: either plain text
// or SSML-style markup.
type Payload struct {
	Kind Kind
	body string
}

func Plain(text string) Payload {
	return Payload{Kind: KindPlain, body: text}
}

func Annotated(markup string) Payload {
	return Payload{Kind: KindAnnotated, body: markup}
}

// Markup returns the raw body. For plain payloads it equals Text.
func (p Payload) Markup() string { return p.body }

func (p Payload) IsZero() bool { return strings.TrimSpace(p.body) == "" }

var (
	markupTagPattern = regexp.MustCompile(`<[^>]*>`)
	spaceRunPattern  = regexp.MustCompile(`\s+`)
)

// Text returns the display text: tags removed, entities unescaped and
// whitespace collapsed for annotated payloads.
func (p Payload) Text() string {
	if p.Kind != KindAnnotated {
		return strings.TrimSpace(p.body)
	}
	out := markupTagPattern.ReplaceAllString(p.body, " ")
	out = html.UnescapeString(out)
	out = spaceRunPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Utterance is one captured user command. Empty Text means nothing was
// understood.
type Utterance struct {
	Text       string
	CapturedAt time.Time
}

func (u Utterance) Empty() bool { return strings.TrimSpace(u.Text) == "" }
