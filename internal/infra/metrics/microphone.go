package metrics

import (
	"context"

	"easyquery/internal/application"
)

type instrumentedMicrophone struct {
	application.Microphone
	m *Metrics
}

// InstrumentMicrophone counts open attempts and captured audio for mic.
func InstrumentMicrophone(mic application.Microphone, m *Metrics) application.Microphone {
	if m == nil {
		return mic
	}
	return &instrumentedMicrophone{Microphone: mic, m: m}
}

func (i *instrumentedMicrophone) Open(ctx context.Context) (application.AudioStream, error) {
	stream, err := i.Microphone.Open(ctx)
	if err != nil {
		i.m.MicrophoneOpens.WithLabelValues("denied").Inc()
		return nil, err
	}
	i.m.MicrophoneOpens.WithLabelValues("opened").Inc()
	return &instrumentedStream{AudioStream: stream, m: i.m}, nil
}

type instrumentedStream struct {
	application.AudioStream
	m *Metrics
}

func (s *instrumentedStream) Start(encoding string) (<-chan []byte, error) {
	in, err := s.AudioStream.Start(encoding)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for chunk := range in {
			s.m.CapturedChunks.Inc()
			s.m.CapturedBytes.Add(float64(len(chunk)))
			out <- chunk
		}
	}()
	return out, nil
}
