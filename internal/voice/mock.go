package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errMockSpeak = errors.New("mock tts failure")

// MockTTS records spoken payloads instead of producing audio.
type MockTTS struct {
	mu      sync.Mutex
	name    string
	fail    bool
	spoken  []Payload
	attempt int
}

func NewMockTTS(name string) *MockTTS {
	if strings.TrimSpace(name) == "" {
		name = "mock"
	}
	return &MockTTS{name: name}
}

func (m *MockTTS) Name() string { return m.name }

// SetFailing makes subsequent Speak calls fail.
func (m *MockTTS) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *MockTTS) Speak(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt++
	if m.fail {
		return errMockSpeak
	}
	m.spoken = append(m.spoken, p)
	return nil
}

// Spoken returns the payloads spoken so far.
func (m *MockTTS) Spoken() []Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Payload(nil), m.spoken...)
}

// Attempts counts Speak calls including failed ones.
func (m *MockTTS) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// MockTranscriber returns scripted transcripts in order, then the last one
// forever. With no script it returns an empty transcript.
type MockTranscriber struct {
	mu     sync.Mutex
	script []string
	err    error
	calls  int
}

func NewMockTranscriber(script ...string) *MockTranscriber {
	return &MockTranscriber{script: script}
}

func (m *MockTranscriber) Name() string { return "mock" }

func (m *MockTranscriber) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockTranscriber) Transcribe(ctx context.Context, _ []int16, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.script) == 0 {
		return "", nil
	}
	idx := min(m.calls-1, len(m.script)-1)
	return m.script[idx], nil
}

func (m *MockTranscriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
