package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"easyquery/internal/domain"
)

var (
	ErrProviderNotSet   = errors.New("llm provider not configured")
	ErrAlreadyRecording = errors.New("capture already in progress")
	ErrNotRecording     = errors.New("not recording")
	ErrMicrophoneAccess = errors.New("microphone access")
)

type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureRecording
	CaptureFinalizing
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureRecording:
		return "recording"
	case CaptureFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("CaptureState(%d)", int(s))
	}
}

// SubmitFunc receives the finalized payload of a capture cycle.
type SubmitFunc func(ctx context.Context, payload domain.AudioPayload) error

// captureSession holds everything scoped to one recording cycle.
type captureSession struct {
	id        string
	encoding  string
	stream    AudioStream
	startedAt time.Time

	chunks [][]byte
	done   chan struct{}
}

func (s *captureSession) collect(chunks <-chan []byte) {
	defer close(s.done)
	for chunk := range chunks {
		s.chunks = append(s.chunks, chunk)
	}
}

// Capture drives one microphone through idle, recording and finalizing.
// Only one session exists at a time.
type Capture struct {
	mic       Microphone
	encodings []string
	logger    *slog.Logger

	mu       sync.Mutex
	state    CaptureState
	starting bool
	session  *captureSession
}

func NewCapture(mic Microphone, encodings []string, logger *slog.Logger) *Capture {
	return &Capture{
		mic:       mic,
		encodings: encodings,
		logger:    logger,
		state:     CaptureIdle,
	}
}

func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectEncoding returns the first preferred encoding the microphone
// supports, falling back to the microphone's default.
func (c *Capture) SelectEncoding() string {
	for _, encoding := range c.encodings {
		if c.mic.Supports(encoding) {
			return encoding
		}
	}
	if encoding := c.mic.DefaultEncoding(); encoding != "" {
		return encoding
	}
	return domain.FallbackEncoding
}

// Start opens the microphone and begins buffering chunks. The microphone is
// never touched when provider is empty.
func (c *Capture) Start(ctx context.Context, provider string) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", ErrProviderNotSet
	}

	c.mu.Lock()
	if c.state != CaptureIdle || c.starting {
		c.mu.Unlock()
		return "", ErrAlreadyRecording
	}
	c.starting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	stream, err := c.mic.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMicrophoneAccess, err)
	}

	encoding := c.SelectEncoding()

	chunks, err := stream.Start(encoding)
	if err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			c.logger.Warn("closing microphone", "error", closeErr)
		}
		return "", fmt.Errorf("%w: starting recorder: %w", ErrMicrophoneAccess, err)
	}

	session := &captureSession{
		id:        uuid.NewString(),
		encoding:  encoding,
		stream:    stream,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go session.collect(chunks)

	c.mu.Lock()
	c.session = session
	c.state = CaptureRecording
	c.mu.Unlock()

	c.logger.Info("recording started",
		"session", session.id,
		"microphone", c.mic.Name(),
		"encoding", encoding,
	)

	return session.id, nil
}

// Stop finalizes the active session and hands its payload to submit. It
// returns ErrNotRecording without side effects unless a recording is
// active. The adapter is idle again when Stop returns, whatever submit did.
func (c *Capture) Stop(ctx context.Context, submit SubmitFunc) error {
	c.mu.Lock()
	if c.state != CaptureRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.state = CaptureFinalizing
	session := c.session
	c.mu.Unlock()

	defer c.reset()

	payload, err := c.finalize(ctx, session)
	if err != nil {
		return fmt.Errorf("finalizing capture: %w", err)
	}

	c.logger.Info("recording finished",
		"session", session.id,
		"bytes", len(payload.Data),
		"chunks", len(session.chunks),
		"duration", time.Since(session.startedAt).Round(time.Millisecond),
	)

	return submit(ctx, payload)
}

func (c *Capture) finalize(ctx context.Context, session *captureSession) (domain.AudioPayload, error) {
	stopErr := session.stream.Stop()

	select {
	case <-session.done:
	case <-ctx.Done():
		if err := session.stream.Close(); err != nil {
			c.logger.Warn("closing microphone", "session", session.id, "error", err)
		}
		return domain.AudioPayload{}, ctx.Err()
	}

	if err := session.stream.Close(); err != nil {
		c.logger.Warn("closing microphone", "session", session.id, "error", err)
	}
	if stopErr != nil {
		return domain.AudioPayload{}, fmt.Errorf("stopping recorder: %w", stopErr)
	}

	return domain.AudioPayload{
		SessionID: session.id,
		Encoding:  session.encoding,
		Data:      bytes.Join(session.chunks, nil),
	}, nil
}

func (c *Capture) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CaptureIdle
	c.session = nil
}
