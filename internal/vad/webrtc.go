package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/obiente/translate/subtitler/internal/audio"
)

// WebRTCClassifier wraps the WebRTC VAD for 16 kHz frames.
type WebRTCClassifier struct {
	vad *webrtcvad.VAD
	buf []byte
}

func NewWebRTCClassifier(mode, frameMs int) (*WebRTCClassifier, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}
	if frameMs == 0 {
		frameMs = 30
	}
	n := audio.TargetSampleRate * frameMs / 1000
	if !v.ValidRateAndFrameLength(audio.TargetSampleRate, n) {
		return nil, fmt.Errorf("webrtc vad: invalid frame of %d samples at %d Hz", n, audio.TargetSampleRate)
	}
	return &WebRTCClassifier{vad: v, buf: make([]byte, 2*n)}, nil
}

func (w *WebRTCClassifier) IsSpeech(frame []int16) (bool, error) {
	if len(w.buf) != 2*len(frame) {
		w.buf = make([]byte, 2*len(frame))
	}
	for i, s := range frame {
		w.buf[i*2] = byte(s)
		w.buf[i*2+1] = byte(s >> 8)
	}
	active, err := w.vad.Process(audio.TargetSampleRate, w.buf)
	if err != nil {
		return false, fmt.Errorf("VAD processing failed: %w", err)
	}
	return active, nil
}
