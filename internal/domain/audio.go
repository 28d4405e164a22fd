package domain

import "strings"

// FallbackEncoding tags a payload when neither the preference list nor the
// microphone names an encoding.
const FallbackEncoding = "audio/webm"

// AudioPayload is the result of one capture cycle: every chunk recorded,
// concatenated in arrival order.
type AudioPayload struct {
	SessionID string
	Encoding  string
	Data      []byte
}

// Filename returns the upload name derived from the encoding subtype,
// e.g. "audio/ogg;codecs=opus" becomes "audio.ogg".
func (p AudioPayload) Filename() string {
	encoding := p.Encoding
	if encoding == "" {
		encoding = FallbackEncoding
	}
	if i := strings.IndexByte(encoding, ';'); i >= 0 {
		encoding = encoding[:i]
	}
	ext := "webm"
	if _, sub, ok := strings.Cut(strings.TrimSpace(encoding), "/"); ok && sub != "" {
		ext = sub
	}
	return "audio." + ext
}
