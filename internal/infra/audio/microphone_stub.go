//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"easyquery/internal/application"
)

// Microphone stub when portaudio is not available
type Microphone struct {
	logger *slog.Logger
}

func NewMicrophone(sampleRate, channels, chunkSize int, logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

func (m *Microphone) Name() string {
	return "microphone"
}

func (m *Microphone) Supports(encoding string) bool {
	return sameEncoding(encoding, EncodingWAV)
}

func (m *Microphone) DefaultEncoding() string {
	return EncodingWAV
}

func (m *Microphone) Open(_ context.Context) (application.AudioStream, error) {
	return nil, fmt.Errorf("microphone not available: rebuild with -tags portaudio or set audio.source to file")
}
