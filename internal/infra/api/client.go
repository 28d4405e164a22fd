package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"golang.org/x/net/http2"

	"easyquery/internal/application"
	"easyquery/internal/domain"
	"easyquery/internal/infra/metrics"
)

const maxResponseBytes = 32 * 1024 * 1024

type Endpoints struct {
	Connect      string
	Schema       string
	Query        string
	SpeechToText string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Connect:      "/connection/connect",
		Schema:       "/query/schema",
		Query:        "/query/query",
		SpeechToText: "/query/speech-to-text",
	}
}

type Config struct {
	BaseURL   string
	Endpoints Endpoints
	// SpeechProviderField adds llm_provider to speech uploads, for backends
	// that run the query as part of the conversion.
	SpeechProviderField bool
}

// Client talks to the query backend. It never retries: every failure is
// returned to the caller as is.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewClient(cfg Config, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Endpoints == (Endpoints{}) {
		cfg.Endpoints = DefaultEndpoints()
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		metrics:    m,
	}
}

func NewHTTPClient(timeout time.Duration, enableHTTP2 bool) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if enableHTTP2 {
		if tr.TLSClientConfig == nil {
			tr.TLSClientConfig = &tls.Config{}
		}
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("configuring http2: %w", err)
		}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type connectRequest struct {
	DBURL string `json:"db_url"`
}

type connectResponse struct {
	DBURL string `json:"db_url"`
}

type schemaResponse struct {
	Schema json.RawMessage `json:"schema"`
}

type queryResponse struct {
	Results json.RawMessage `json:"results"`
}

type speechResponse struct {
	TextQuery string `json:"text_query"`
}

type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func (c *Client) Connect(ctx context.Context, dbURL string) (string, error) {
	var out connectResponse
	if err := c.postJSON(ctx, "connect", c.cfg.Endpoints.Connect, connectRequest{DBURL: dbURL}, &out); err != nil {
		return "", err
	}
	return out.DBURL, nil
}

func (c *Client) Schema(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.cfg.Endpoints.Schema), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var out schemaResponse
	if err := c.do(req, "schema", &out); err != nil {
		return nil, err
	}
	return out.Schema, nil
}

func (c *Client) Query(ctx context.Context, query domain.QueryRequest) (json.RawMessage, error) {
	var out queryResponse
	if err := c.postJSON(ctx, "query", c.cfg.Endpoints.Query, query, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) SpeechToText(ctx context.Context, payload domain.AudioPayload, provider string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio_file"; filename="%s"`, payload.Filename()))
	encoding := payload.Encoding
	if encoding == "" {
		encoding = domain.FallbackEncoding
	}
	header.Set("Content-Type", encoding)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}

	if _, err = part.Write(payload.Data); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}

	if c.cfg.SpeechProviderField && provider != "" {
		if err = writer.WriteField("llm_provider", provider); err != nil {
			return "", fmt.Errorf("writing provider field: %w", err)
		}
	}

	if err = writer.Close(); err != nil {
		return "", fmt.Errorf("closing writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.cfg.Endpoints.SpeechToText), body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out speechResponse
	if err := c.do(req, "speech", &out); err != nil {
		return "", err
	}
	return out.TextQuery, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(endpoint, outcome(err), time.Since(start))
	}()

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &application.TransportError{Op: "sending request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &application.TransportError{Op: "reading response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &application.TransportError{Op: "decoding response", Err: err}
	}

	return nil
}

// decodeError turns a non-2xx body into a ServerError carrying detail, or
// message when detail is absent. A body that is not JSON is a transport
// failure.
func decodeError(status int, body []byte) error {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return &application.TransportError{
			Op:  "decoding error response",
			Err: fmt.Errorf("status %d: %w", status, err),
		}
	}

	msg := detailText(payload.Detail)
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &application.ServerError{StatusCode: status, Message: msg}
}

// detailText returns detail when it is a JSON string and its compact JSON
// text otherwise (FastAPI validation errors carry a list).
func detailText(detail json.RawMessage) string {
	if len(detail) == 0 || string(detail) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, detail); err != nil {
		return string(detail)
	}
	return buf.String()
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var serverErr *application.ServerError
	if errors.As(err, &serverErr) {
		return metrics.OutcomeServer
	}
	return metrics.OutcomeTransport
}

func (c *Client) url(path string) string {
	return c.cfg.BaseURL + path
}
