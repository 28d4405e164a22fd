package application

import (
	"context"
	"encoding/json"
	"fmt"

	"easyquery/internal/domain"
)

// Backend is the remote query service.
type Backend interface {
	Connect(ctx context.Context, dbURL string) (string, error)
	Schema(ctx context.Context) (json.RawMessage, error)
	Query(ctx context.Context, req domain.QueryRequest) (json.RawMessage, error)
	SpeechToText(ctx context.Context, payload domain.AudioPayload, provider string) (string, error)
}

// ServerError is a non-2xx response carrying the backend's message.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// TransportError covers failures to reach the backend or to read its reply.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type PreferenceStore interface {
	LoadPreference(ctx context.Context) (domain.ProviderPreference, error)
	SavePreference(ctx context.Context, pref domain.ProviderPreference) error
}

type Clipboard interface {
	Copy(text string) error
}
