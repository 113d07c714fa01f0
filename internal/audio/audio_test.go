package audio

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := Int16ToBytes([]int16{1, -1, 300, -300})
	wav, err := EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len(wav) = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids: %q %q %q", wav[0:4], wav[8:12], wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
}

func TestBytesToInt16DropsOddTrailingByte(t *testing.T) {
	got := BytesToInt16([]byte{0x01, 0x00, 0xff})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("BytesToInt16() = %v, want [1]", got)
	}
}

func TestRMSVADHysteresis(t *testing.T) {
	v := NewRMSVAD()
	v.SilenceFrames = 2
	loud := constantFrame(8000, 160)
	quiet := constantFrame(0, 160)

	if v.IsSpeech(loud) {
		t.Fatalf("first loud frame should not start speech yet")
	}
	if !v.IsSpeech(loud) {
		t.Fatalf("second loud frame should start speech")
	}
	if !v.IsSpeech(quiet) {
		t.Fatalf("single quiet frame should not end speech")
	}
	if v.IsSpeech(quiet) {
		t.Fatalf("second quiet frame should end speech")
	}
}

func TestExclusiveDeviceRejectsSecondOpen(t *testing.T) {
	inner := NewMockDevice(nil)
	d := NewExclusiveDevice(inner)

	s, err := d.OpenFor("wakeword", 16000, 512)
	if err != nil {
		t.Fatalf("OpenFor() error = %v", err)
	}
	if d.Holder() != "wakeword" {
		t.Fatalf("Holder() = %q, want wakeword", d.Holder())
	}
	if _, err := d.OpenFor("listener", 16000, 512); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second OpenFor() error = %v, want ErrDeviceBusy", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Double close must not release twice.
	_ = s.Close()

	s2, err := d.OpenFor("listener", 16000, 512)
	if err != nil {
		t.Fatalf("OpenFor() after release error = %v", err)
	}
	defer s2.Close()
	if inner.MaxConcurrentOpen() != 1 {
		t.Fatalf("MaxConcurrentOpen() = %d, want 1", inner.MaxConcurrentOpen())
	}
	if d.Rejected() != 1 {
		t.Fatalf("Rejected() = %d, want 1", d.Rejected())
	}
}

func TestExclusiveDeviceReleasesOnOpenFailure(t *testing.T) {
	inner := NewMockDevice(nil)
	inner.FailOpen(errors.New("no mic"))
	d := NewExclusiveDevice(inner)
	if _, err := d.OpenFor("wakeword", 16000, 512); err == nil {
		t.Fatalf("OpenFor() expected error")
	}
	if d.Holder() != "" {
		t.Fatalf("Holder() = %q, want empty after failed open", d.Holder())
	}
	inner.FailOpen(nil)
	s, err := d.OpenFor("wakeword", 16000, 512)
	if err != nil {
		t.Fatalf("OpenFor() error = %v", err)
	}
	_ = s.Close()
}

func constantFrame(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
