//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"easyquery/internal/application"
)

const framesPerBuffer = 1024

// Microphone records 16-bit PCM from the default input device and delivers
// it as WAV once stopped.
type Microphone struct {
	sampleRate int
	channels   int
	chunkSize  int
	logger     *slog.Logger
}

func NewMicrophone(sampleRate, channels, chunkSize int, logger *slog.Logger) *Microphone {
	return &Microphone{
		sampleRate: sampleRate,
		channels:   channels,
		chunkSize:  chunkSize,
		logger:     logger,
	}
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

func (m *Microphone) Open(ctx context.Context) (application.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, framesPerBuffer*m.channels)

	stream, err := portaudio.OpenDefaultStream(
		m.channels,
		0,
		float64(m.sampleRate),
		framesPerBuffer,
		buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	return &micStream{
		mic:    m,
		stream: stream,
		loop:   newPCMLoop(buffer, stream.Read),
	}, nil
}

type micStream struct {
	mic    *Microphone
	stream *portaudio.Stream
	loop   *pcmLoop

	mu      sync.Mutex
	out     chan []byte
	stopped bool
	closed  bool
}

func (s *micStream) Start(encoding string) (<-chan []byte, error) {
	if !s.mic.Supports(encoding) {
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	if err := s.stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	s.out = make(chan []byte)
	s.loop.start()

	s.mic.logger.Info("microphone started", "sampleRate", s.mic.sampleRate, "channels", s.mic.channels)
	return s.out, nil
}

// Stop ends the read loop, encodes everything captured and sends it as
// ordered chunks before closing the channel. A read error that ended
// recording early is returned after the channel is closed.
func (s *micStream) Stop() error {
	s.mu.Lock()
	if s.out == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	samples, readErr := s.loop.stop()

	if err := s.stream.Stop(); err != nil {
		s.mic.logger.Warn("stopping stream", "error", err)
	}

	if readErr != nil {
		close(s.out)
		return fmt.Errorf("reading from microphone: %w", readErr)
	}

	data, err := EncodeWAV(samples, s.mic.sampleRate, s.mic.channels)
	if err != nil {
		close(s.out)
		return fmt.Errorf("encoding wav: %w", err)
	}

	go func() {
		defer close(s.out)
		for _, chunk := range splitChunks(data, s.mic.chunkSize) {
			s.out <- chunk
		}
	}()

	return nil
}

func (s *micStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.stream.Close()
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	return nil
}
