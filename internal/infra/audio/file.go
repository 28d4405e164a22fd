package audio

import (
	"context"
	"fmt"
	"os"
	"sync"

	"easyquery/internal/application"
)

// FileMicrophone plays a recording from disk as if it were captured live.
// The whole file is delivered in chunkSize pieces; the stream then stays
// open until stopped.
type FileMicrophone struct {
	path      string
	chunkSize int
}

func NewFileMicrophone(path string, chunkSize int) *FileMicrophone {
	return &FileMicrophone{
		path:      path,
		chunkSize: chunkSize,
	}
}

func (f *FileMicrophone) Name() string {
	return "file"
}

func (f *FileMicrophone) Open(ctx context.Context) (application.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("audio file %s is a directory", f.path)
	}

	return &fileStream{
		path:      f.path,
		chunkSize: f.chunkSize,
		stop:      make(chan struct{}),
	}, nil
}

func (f *FileMicrophone) Supports(encoding string) bool {
	own := EncodingForFile(f.path)
	return own != "" && sameEncoding(own, encoding)
}

func (f *FileMicrophone) DefaultEncoding() string {
	return EncodingForFile(f.path)
}

type fileStream struct {
	path      string
	chunkSize int

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *fileStream) Start(_ string) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, fmt.Errorf("stream already started")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", s.path, err)
	}
	s.started = true

	out := make(chan []byte)
	go func() {
		defer close(out)
		for _, chunk := range splitChunks(data, s.chunkSize) {
			out <- chunk
		}
		<-s.stop
	}()

	return out, nil
}

func (s *fileStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *fileStream) Close() error {
	return s.Stop()
}
