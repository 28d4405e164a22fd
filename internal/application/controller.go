package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"easyquery/internal/domain"
)

// Controller turns user actions into backend calls. Every method returns the
// panel updates to display; nothing is written to the screen from here.
type Controller struct {
	backend   Backend
	capture   *Capture
	prefs     PreferenceStore
	notifier  Notifier
	clipboard Clipboard
	logger    *slog.Logger

	mu          sync.Mutex
	provider    string
	queryText   string
	lastResults string
	progress    func(domain.View)
}

func NewController(
	backend Backend,
	capture *Capture,
	prefs PreferenceStore,
	notifier Notifier,
	clipboard Clipboard,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		backend:   backend,
		capture:   capture,
		prefs:     prefs,
		notifier:  notifier,
		clipboard: clipboard,
		logger:    logger,
	}
}

// OnProgress registers a callback for interim statuses such as
// "Connecting..." that are shown before an action completes.
func (c *Controller) OnProgress(fn func(domain.View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = fn
}

func (c *Controller) report(v domain.View) {
	c.mu.Lock()
	fn := c.progress
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// LoadPreferences restores the saved provider. A missing or unreadable
// store leaves the provider unset.
func (c *Controller) LoadPreferences(ctx context.Context) {
	pref, err := c.prefs.LoadPreference(ctx)
	if err != nil {
		c.logger.Warn("loading provider preference", "error", err)
		return
	}
	if pref.Provider == "" {
		return
	}
	c.mu.Lock()
	c.provider = pref.Provider
	c.mu.Unlock()
	c.logger.Debug("provider preference loaded", "provider", pref.Provider)
}

func (c *Controller) Provider() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func (c *Controller) QueryText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryText
}

func (c *Controller) SetProvider(ctx context.Context, provider string) domain.View {
	provider = strings.TrimSpace(provider)

	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()

	if err := c.prefs.SavePreference(ctx, domain.ProviderPreference{Provider: provider}); err != nil {
		c.logger.Error("saving provider preference", "error", err)
		return domain.View{Results: domain.NewStatus(domain.KindWarning,
			fmt.Sprintf("Provider set to %s but could not be saved: %v", provider, err))}
	}

	if provider == "" {
		return domain.View{Results: domain.NewStatus(domain.KindInfo, "Provider cleared.")}
	}
	if !domain.IsKnownProvider(provider) {
		return domain.View{Results: domain.NewStatus(domain.KindWarning,
			fmt.Sprintf("Provider set to %s (the backend accepts %s).", provider, strings.Join(domain.Providers, ", ")))}
	}
	return domain.View{Results: domain.NewStatus(domain.KindInfo, fmt.Sprintf("Provider set to %s.", provider))}
}

func (c *Controller) Connect(ctx context.Context, dbURL string) domain.View {
	dbURL = strings.TrimSpace(dbURL)
	if dbURL == "" {
		return connectionView(domain.ConnectionError, "Please enter a database URL.")
	}

	c.report(connectionView(domain.ConnectionConnecting, "Connecting..."))

	connected, err := c.backend.Connect(ctx, dbURL)
	if err != nil {
		c.logger.Error("connecting to database", "error", err)
		return domain.View{Connection: failure("Connection failed", "Connection error", err)}
	}

	c.logger.Info("database connected", "db_url", connected)

	view := connectionView(domain.ConnectionConnected, "Connected to "+connected)
	return view.Merge(c.RefreshSchema(ctx))
}

func (c *Controller) RefreshSchema(ctx context.Context) domain.View {
	schema, err := c.backend.Schema(ctx)
	if err != nil {
		c.logger.Error("fetching schema", "error", err)
		return domain.View{Schema: failure("Failed to fetch schema", "Error fetching schema", err)}
	}
	return domain.View{Schema: domain.NewStatus(domain.KindSuccess, formatJSON(schema))}
}

// SubmitTextQuery sends text with the current provider. Empty text or an
// unset provider is reported without contacting the backend.
func (c *Controller) SubmitTextQuery(ctx context.Context, text string) domain.View {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.View{Results: domain.NewStatus(domain.KindError, "Please enter a query.")}
	}

	c.mu.Lock()
	c.queryText = text
	provider := c.provider
	c.mu.Unlock()

	if provider == "" {
		return domain.View{Results: domain.NewStatus(domain.KindError, "Please configure LLM provider first.")}
	}

	c.report(domain.View{Results: domain.NewStatus(domain.KindInfo, "Executing query...")})

	results, err := c.backend.Query(ctx, domain.QueryRequest{QueryText: text, Provider: provider})
	if err != nil {
		c.logger.Error("executing query", "error", err, "provider", provider)
		c.notify(ctx, "Query failed: "+err.Error())
		return domain.View{Results: failure("Query failed", "Query error", err)}
	}

	formatted := formatJSON(results)

	c.mu.Lock()
	c.lastResults = formatted
	c.mu.Unlock()

	c.logger.Info("query executed", "provider", provider, "bytes", len(results))
	c.notify(ctx, "Query finished: "+text)

	return domain.View{Results: domain.NewStatus(domain.KindSuccess, formatted)}
}

// RunQuery executes the current query text, typically one filled in from
// speech.
func (c *Controller) RunQuery(ctx context.Context) domain.View {
	return c.SubmitTextQuery(ctx, c.QueryText())
}

func (c *Controller) StartSpeech(ctx context.Context) domain.View {
	_, err := c.capture.Start(ctx, c.Provider())
	switch {
	case err == nil:
		return domain.View{Results: domain.NewStatus(domain.KindInfo, "Listening...")}
	case errors.Is(err, ErrProviderNotSet):
		return domain.View{Results: domain.NewStatus(domain.KindError, "Please configure LLM provider first.")}
	case errors.Is(err, ErrAlreadyRecording):
		return domain.View{Results: domain.NewStatus(domain.KindWarning, "Already recording.")}
	default:
		c.logger.Error("accessing microphone", "error", err)
		return domain.View{Results: domain.NewStatus(domain.KindError, "Microphone access error: "+err.Error())}
	}
}

// StopSpeech ends the recording and submits it. It does nothing unless a
// recording is active.
func (c *Controller) StopSpeech(ctx context.Context) domain.View {
	var view domain.View

	err := c.capture.Stop(ctx, func(ctx context.Context, payload domain.AudioPayload) error {
		view = c.SubmitSpeech(ctx, payload)
		return nil
	})
	if errors.Is(err, ErrNotRecording) {
		return domain.View{}
	}
	if err != nil {
		c.logger.Error("stopping capture", "error", err)
		return domain.View{Results: domain.NewStatus(domain.KindError, "Audio capture error: "+err.Error())}
	}

	return view
}

// SubmitSpeech uploads a recorded payload for conversion. The recognized
// text becomes the current query text; it is not executed.
func (c *Controller) SubmitSpeech(ctx context.Context, payload domain.AudioPayload) domain.View {
	c.report(domain.View{Results: domain.NewStatus(domain.KindWarning, "Processing speech...")})

	text, err := c.backend.SpeechToText(ctx, payload, c.Provider())
	if err != nil {
		c.logger.Error("converting speech", "error", err, "session", payload.SessionID)
		c.notify(ctx, "Speech conversion failed")
		return domain.View{Results: failure("Speech conversion failed", "Audio communication error", err)}
	}

	c.mu.Lock()
	c.queryText = text
	c.mu.Unlock()

	c.logger.Info("speech converted", "session", payload.SessionID, "text", text)
	c.notify(ctx, "Speech converted: "+text)

	return domain.View{
		Results:   domain.NewStatus(domain.KindSuccess, "Speech converted to text. Review and run the query."),
		QueryText: &text,
	}
}

// CopyResults places the last query results on the clipboard.
func (c *Controller) CopyResults() domain.View {
	c.mu.Lock()
	results := c.lastResults
	c.mu.Unlock()

	if results == "" {
		return domain.View{Results: domain.NewStatus(domain.KindError, "Nothing to copy yet.")}
	}
	if err := c.clipboard.Copy(results); err != nil {
		return domain.View{Results: domain.NewStatus(domain.KindError, "Copy failed: "+err.Error())}
	}
	return domain.View{Results: domain.NewStatus(domain.KindSuccess, "Results copied to clipboard.")}
}

func (c *Controller) notify(ctx context.Context, message string) {
	if err := c.notifier.Notify(ctx, message); err != nil {
		c.logger.Error("sending notification", "error", err)
	}
}

func connectionView(status domain.ConnectionStatus, text string) domain.View {
	return domain.View{Connection: domain.NewStatus(status.Kind(), text)}
}

// failure renders a server-reported error verbatim after failedPrefix and
// anything else as a communication error after errorPrefix.
func failure(failedPrefix, errorPrefix string, err error) *domain.Status {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return domain.NewStatus(domain.KindError, failedPrefix+": "+serverErr.Message)
	}
	return domain.NewStatus(domain.KindError, errorPrefix+": "+err.Error())
}

// formatJSON indents raw with two spaces. Values that are not valid JSON
// are returned unchanged.
func formatJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
