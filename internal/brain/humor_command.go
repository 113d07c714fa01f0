package brain

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	humorConfirmationFormat = "Humor setting adjusted to %d%%."
	humorRejection          = "Please provide a valid humor setting between 0 and 100 percent."
)

var humorCommandRe = regexp.MustCompile(`(?i)^\s*set\s+(?:your\s+|the\s+)?humou?r(?:\s+setting)?\s+to\b\s*(.*)$`)

// parseHumorCommand reports whether text is a humor command and, if so, the
// requested level. ok is false when the argument is not a number.
func parseHumorCommand(text string) (level int, isCommand bool, ok bool) {
	m := humorCommandRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false, false
	}
	arg := strings.ToLower(strings.TrimSpace(m[1]))
	arg = strings.TrimRight(arg, ".!?, ")
	arg = strings.TrimSpace(strings.TrimSuffix(arg, "percent"))
	arg = strings.TrimSpace(strings.TrimSuffix(arg, "%"))
	if arg == "" {
		return 0, true, false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return n, true, true
	}
	if n, ok := parseSpokenNumber(arg); ok {
		return n, true, true
	}
	return 0, true, false
}

var (
	spokenUnits = map[string]int{
		"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
		"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	}
	spokenTens = map[string]int{
		"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	}
)

// parseSpokenNumber handles transcripts that spell out 0..100, e.g.
// "forty five", "sixty-two", "one hundred".
func parseSpokenNumber(s string) (int, bool) {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	switch len(words) {
	case 1:
		if words[0] == "hundred" {
			return 100, true
		}
		if n, ok := spokenUnits[words[0]]; ok {
			return n, true
		}
		n, ok := spokenTens[words[0]]
		return n, ok
	case 2:
		if (words[0] == "one" || words[0] == "a") && words[1] == "hundred" {
			return 100, true
		}
		tens, ok := spokenTens[words[0]]
		if !ok {
			return 0, false
		}
		unit, ok := spokenUnits[words[1]]
		if !ok || unit == 0 || unit > 9 {
			return 0, false
		}
		return tens + unit, true
	default:
		return 0, false
	}
}
