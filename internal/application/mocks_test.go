package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"easyquery/internal/application"
	"easyquery/internal/domain"
)

type mockBackend struct {
	mu sync.Mutex

	connectResult string
	connectErr    error
	schema        json.RawMessage
	schemaErr     error
	results       json.RawMessage
	queryErr      error
	speechText    string
	speechErr     error

	connectCalls []string
	schemaCalls  int
	queries      []domain.QueryRequest
	payloads     []domain.AudioPayload
	providers    []string
}

func (m *mockBackend) Connect(_ context.Context, dbURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls = append(m.connectCalls, dbURL)
	if m.connectErr != nil {
		return "", m.connectErr
	}
	if m.connectResult != "" {
		return m.connectResult, nil
	}
	return dbURL, nil
}

func (m *mockBackend) Schema(_ context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaCalls++
	return m.schema, m.schemaErr
}

func (m *mockBackend) Query(_ context.Context, req domain.QueryRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, req)
	return m.results, m.queryErr
}

func (m *mockBackend) SpeechToText(_ context.Context, payload domain.AudioPayload, provider string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	m.providers = append(m.providers, provider)
	return m.speechText, m.speechErr
}

func (m *mockBackend) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connectCalls) + m.schemaCalls + len(m.queries) + len(m.payloads)
}

type mockMicrophone struct {
	mu        sync.Mutex
	supported map[string]bool
	def       string
	openErr   error
	startErr  error
	chunks    [][]byte
	opened    int
	started   []string
}

func (m *mockMicrophone) Name() string { return "mock" }

func (m *mockMicrophone) Open(_ context.Context) (application.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &mockStream{mic: m, stop: make(chan struct{})}, nil
}

func (m *mockMicrophone) Supports(encoding string) bool {
	return m.supported[encoding]
}

func (m *mockMicrophone) DefaultEncoding() string { return m.def }

func (m *mockMicrophone) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

type mockStream struct {
	mic      *mockMicrophone
	stop     chan struct{}
	stopOnce sync.Once
	closed   bool
}

func (s *mockStream) Start(encoding string) (<-chan []byte, error) {
	s.mic.mu.Lock()
	s.mic.started = append(s.mic.started, encoding)
	chunks := s.mic.chunks
	startErr := s.mic.startErr
	s.mic.mu.Unlock()

	if startErr != nil {
		return nil, startErr
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for _, chunk := range chunks {
			out <- chunk
		}
		<-s.stop
	}()
	return out, nil
}

func (s *mockStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

type mockPrefs struct {
	mu      sync.Mutex
	pref    domain.ProviderPreference
	loadErr error
	saveErr error
	saved   []domain.ProviderPreference
}

func (m *mockPrefs) LoadPreference(_ context.Context) (domain.ProviderPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pref, m.loadErr
}

func (m *mockPrefs) SavePreference(_ context.Context, pref domain.ProviderPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.pref = pref
	m.saved = append(m.saved, pref)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Notify(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

type mockClipboard struct {
	text string
	err  error
}

func (m *mockClipboard) Copy(text string) error {
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

var errBoom = errors.New("boom")
