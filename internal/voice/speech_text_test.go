package voice

import "testing"

func TestSanitizeSpeechText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops emoji and markdown markers",
			in:   "Sure \U0001F60A **let's** do this / now.",
			want: "Sure let's do this now.",
		},
		{
			name: "keeps markdown link label and removes url",
			in:   "Read [the manual](https://example.com/docs) first.",
			want: "Read the manual first.",
		},
		{
			name: "removes code blocks and inline code",
			in:   "```bash\nls -la\n```\nThen run `make test` ✅",
			want: "Then run",
		},
		{
			name: "normalizes odd punctuation spacing",
			in:   "Hello***world///again",
			want: "Hello world again",
		},
		{
			name: "drops stage directions",
			in:   "*whirrs mechanically* Docking sequence complete.",
			want: "Docking sequence complete.",
		},
		{
			name: "drops leading speaker tag",
			in:   "TARS: Ninety percent honesty.",
			want: "Ninety percent honesty.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeSpeechText(tc.in)
			if got != tc.want {
				t.Fatalf("sanitizeSpeechText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPayloadText(t *testing.T) {
	cases := []struct {
		name string
		in   Payload
		want string
	}{
		{name: "plain", in: Plain("  Goodbye.  "), want: "Goodbye."},
		{name: "plain keeps angle brackets", in: Plain("1 < 2"), want: "1 < 2"},
		{
			name: "annotated strips tags and unescapes",
			in:   Annotated(`<speak><break time="500ms"/>well<break time="500ms"/>... Tom &amp; Jerry</speak>`),
			want: "well ... Tom & Jerry",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Text(); got != tc.want {
				t.Fatalf("Text() = %q, want %q", got, tc.want)
			}
		})
	}
	if Plain("hi").Kind != KindPlain || Annotated("<speak/>").Kind != KindAnnotated {
		t.Fatalf("constructors set the wrong kind")
	}
	if !Plain("  ").IsZero() {
		t.Fatalf("blank payload should be zero")
	}
}
