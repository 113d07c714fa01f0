package voice

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// SystemTTS speaks through the platform speech command (say on macOS,
// espeak elsewhere). The text is passed as the final argument, after "--"
// so replies starting with a dash are not parsed as options.
type SystemTTS struct {
	bin  string
	args []string
}

// NewSystemTTS parses command as whitespace-separated binary and arguments.
// An empty command selects the platform default.
func NewSystemTTS(command string) (*SystemTTS, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{defaultSystemTTSCommand()}
	}
	bin, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("system tts %q unavailable: %w", fields[0], err)
	}
	return &SystemTTS{bin: bin, args: fields[1:]}, nil
}

func defaultSystemTTSCommand() string {
	if runtime.GOOS == "darwin" {
		return "say"
	}
	return "espeak"
}

func (t *SystemTTS) Name() string { return "system" }

func (t *SystemTTS) Speak(ctx context.Context, p Payload) error {
	text := sanitizeSpeechText(p.Text())
	if text == "" {
		return nil
	}
	args := append(append([]string(nil), t.args...), "--", text)
	out, err := exec.CommandContext(ctx, t.bin, args...).CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			return fmt.Errorf("system tts: %w", err)
		}
		return fmt.Errorf("system tts: %w: %s", err, detail)
	}
	return nil
}
