package audio

import (
	"encoding/binary"
	"math"
)

const (
	DefaultSampleRate = 16000
	DefaultFrameSize  = 512
)

// Int16ToBytes encodes samples as little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

// BytesToInt16 decodes little-endian PCM16. A trailing odd byte is dropped.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// RMS returns the normalized root-mean-square level of a frame in [0,1].
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// DurationSamples converts a duration in milliseconds to a sample count.
func DurationSamples(sampleRate int, ms int64) int {
	if sampleRate <= 0 || ms <= 0 {
		return 0
	}
	return int(int64(sampleRate) * ms / 1000)
}
