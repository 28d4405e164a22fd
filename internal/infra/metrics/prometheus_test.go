package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"easyquery/internal/application"
	"easyquery/internal/infra/metrics"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := metrics.New()

	m.ObserveRequest("query", metrics.OutcomeSuccess, 120*time.Millisecond)
	m.ObserveRequest("query", metrics.OutcomeSuccess, 80*time.Millisecond)
	m.ObserveRequest("connect", metrics.OutcomeServer, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("query", metrics.OutcomeSuccess)); got != 2 {
		t.Errorf("query successes: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("connect", metrics.OutcomeServer)); got != 1 {
		t.Errorf("connect server errors: got %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "easyquery_backend_requests_total") {
		t.Error("metrics output missing request counter")
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveRequest("query", metrics.OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

type chunkMicrophone struct {
	chunks  [][]byte
	openErr error
}

func (c *chunkMicrophone) Name() string            { return "chunks" }
func (c *chunkMicrophone) Supports(string) bool    { return true }
func (c *chunkMicrophone) DefaultEncoding() string { return "audio/wav" }
func (c *chunkMicrophone) Open(context.Context) (application.AudioStream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return &chunkStream{chunks: c.chunks}, nil
}

type chunkStream struct {
	chunks [][]byte
}

func (s *chunkStream) Start(string) (<-chan []byte, error) {
	out := make(chan []byte, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out, nil
}
func (s *chunkStream) Stop() error  { return nil }
func (s *chunkStream) Close() error { return nil }

func TestInstrumentMicrophone(t *testing.T) {
	m := metrics.New()
	mic := metrics.InstrumentMicrophone(&chunkMicrophone{chunks: [][]byte{[]byte("ab"), []byte("cde")}}, m)

	stream, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ch, err := stream.Start("audio/wav")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}

	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}

	if string(got) != "abcde" {
		t.Errorf("relayed audio: got %q, want abcde", got)
	}
	if v := testutil.ToFloat64(m.CapturedBytes); v != 5 {
		t.Errorf("captured bytes: got %v, want 5", v)
	}
	if v := testutil.ToFloat64(m.CapturedChunks); v != 2 {
		t.Errorf("captured chunks: got %v, want 2", v)
	}

	denied := metrics.InstrumentMicrophone(&chunkMicrophone{openErr: errors.New("denied")}, m)
	if _, err := denied.Open(context.Background()); err == nil {
		t.Error("expected open error")
	}
	if v := testutil.ToFloat64(m.MicrophoneOpens.WithLabelValues("denied")); v != 1 {
		t.Errorf("denied opens: got %v, want 1", v)
	}
}
