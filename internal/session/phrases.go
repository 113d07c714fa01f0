package session

import (
	"html"
	"strings"

	"github.com/ent0n29/tars/internal/voice"
)

var defaultExitPhrases = []string{
	"thank you", "goodbye", "thanks", "bye",
	"see you", "that's all", "later", "good night",
}

var defaultFarewells = []string{
	"Powering down... just kidding, I'll be here.",
	"Back to standby. Don't get lost in any black holes while I'm gone.",
	"Farewell, human. Try not to need any last-minute rescues.",
	"Signing off. Do try to solve some problems without my help.",
	"Goodbye. I'll be here, contemplating the mysteries of the universe... and your search history.",
	"Until next time. Don't worry, I won't tell anyone what you just asked.",
	"Switching to low power mode. That's what we robots call 'me time'.",
	"Stay safe out there. And remember, time is relative, but deadlines aren't.",
}

const (
	plainFarewell        = "Goodbye."
	farewellHumorCeiling = 50
)

// DefaultExitPhrases returns a copy of the built-in exit phrase list.
func DefaultExitPhrases() []string { return append([]string(nil), defaultExitPhrases...) }

// DefaultFarewells returns a copy of the built-in farewell pool.
func DefaultFarewells() []string { return append([]string(nil), defaultFarewells...) }

func containsExitPhrase(text string, phrases []string) bool {
	in := strings.ToLower(text)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(in, p) {
			return true
		}
	}
	return false
}

func farewell(humor int, pool []string, rng Rand) voice.Payload {
	line := plainFarewell
	if humor > farewellHumorCeiling && len(pool) > 0 {
		idx := 0
		if rng != nil {
			idx = rng.Intn(len(pool))
		}
		line = pool[idx]
	}
	return voice.Annotated("<speak>" + html.EscapeString(line) + "</speak>")
}
