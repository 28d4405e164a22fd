package audio

import (
	"path/filepath"
	"strings"
)

const EncodingWAV = "audio/wav"

var encodingsByExt = map[string]string{
	".wav":  EncodingWAV,
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

// EncodingForFile maps a recording's extension to its content type. Unknown
// extensions yield "".
func EncodingForFile(path string) string {
	return encodingsByExt[strings.ToLower(filepath.Ext(path))]
}

// sameEncoding compares content types ignoring parameters and the x- alias
// some platforms use for WAV.
func sameEncoding(a, b string) bool {
	return baseEncoding(a) == baseEncoding(b)
}

func baseEncoding(encoding string) string {
	if i := strings.IndexByte(encoding, ';'); i >= 0 {
		encoding = encoding[:i]
	}
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding == "audio/x-wav" || encoding == "audio/wave" {
		return EncodingWAV
	}
	return encoding
}
