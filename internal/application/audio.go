package application

import "context"

// Microphone grants access to an audio input device.
type Microphone interface {
	Name() string
	// Open requests access to the device. Denied or missing devices return
	// an error. The returned stream does not depend on ctx once opened.
	Open(ctx context.Context) (AudioStream, error)
	Supports(encoding string) bool
	DefaultEncoding() string
}

// AudioStream is an opened device. Start delivers encoded chunks on the
// returned channel in recording order; Stop flushes any pending data and
// the channel is closed once the last chunk has been sent.
type AudioStream interface {
	Start(encoding string) (<-chan []byte, error)
	Stop() error
	Close() error
}
