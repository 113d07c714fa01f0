package audio

// RMSVAD is a voice activity detector based on frame energy with hysteresis,
// so short dips inside a word do not end a speech segment.
type RMSVAD struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	SpeechFrames     int
	SilenceFrames    int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// NewRMSVAD returns a detector tuned for ~32ms frames at 16kHz.
func NewRMSVAD() *RMSVAD {
	return &RMSVAD{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     2,
		SilenceFrames:    20,
	}
}

// IsSpeech feeds one frame and reports whether the detector is in a speech segment.
func (v *RMSVAD) IsSpeech(pcm []int16) bool {
	level := RMS(pcm)

	if v.inSpeech {
		if level < v.SilenceThreshold {
			v.silenceCount++
			if v.silenceCount >= v.SilenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
		return v.inSpeech
	}

	if level >= v.SpeechThreshold {
		v.speechCount++
		if v.speechCount >= v.SpeechFrames {
			v.inSpeech = true
			v.speechCount = 0
		}
	} else {
		v.speechCount = 0
	}
	return v.inSpeech
}

func (v *RMSVAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}
