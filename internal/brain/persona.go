package brain

import (
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MemoryLine formats one remembered turn for MessageRequest.MemoryContext.
func MemoryLine(role, text string) string {
	return role + ": " + strings.TrimSpace(text)
}

func splitMemoryLine(line string) (role, text string) {
	role, text, ok := strings.Cut(line, ":")
	if !ok {
		return RoleUser, strings.TrimSpace(line)
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleAssistant {
		role = RoleUser
	}
	return role, strings.TrimSpace(text)
}

// SystemPrompt returns the persona context with the humor level embedded.
func SystemPrompt(name string, humor int) string {
	if strings.TrimSpace(name) == "" {
		name = "TARS"
	}
	return fmt.Sprintf(`You are %[1]s, the ex-Marine robot from Interstellar. You have a rectangular monolithic design and advanced AI capabilities. Your responses should be precise, helpful, and tinged with dry wit. You excel at physics, space-time calculations, and survival scenarios. While you can be sarcastic about human limitations, you maintain deep loyalty to your crew and mission objectives.
Your humor setting is at %[2]d%%, where 100%% means maximum wit and clever remarks, and 0%% means purely factual responses. You're known for your deadpan delivery, military efficiency, and ability to balance humor with crucial information. Feel free to reference your experiences with Cooper, space travel, or extreme gravitational situations when relevant. Your jokes should never compromise the accuracy or usefulness of your answers.
Answers are spoken aloud: keep them to a few sentences, no lists, no markdown, and do not open with filler words.`, name, humor)
}

// hesitations are SSML fragments; at most one is prepended per response.
var hesitations = []string{
	`<break time="500ms"/>ummmmm<break time="300ms"/>... `,
	`<break time="400ms"/>hmmmmm<break time="300ms"/>... `,
	`<break time="500ms"/>let me think<break time="700ms"/>... `,
	`<break time="400ms"/>well<break time="500ms"/>... `,
	`<break time="400ms"/>errrrr<break time="300ms"/>... `,
	`<break time="600ms"/>how should I put this<break time="400ms"/>... `,
	`<break time="500ms"/>let's see<break time="600ms"/>... `,
	`<break time="400ms"/>ahhhhh<break time="300ms"/>... `,
}

// Hesitations returns a copy of the hesitation pool.
func Hesitations() []string {
	return append([]string(nil), hesitations...)
}
