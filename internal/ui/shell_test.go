package ui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"easyquery/internal/application"
	"easyquery/internal/domain"
	"easyquery/internal/infra/api"
	"easyquery/internal/infra/audio"
	"easyquery/internal/infra/metrics"
	"easyquery/internal/infra/prefs"
	"easyquery/internal/ui"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want ui.Command
	}{
		{line: "connect postgres://user@host/db", want: ui.Command{Name: "connect", Arg: "postgres://user@host/db"}},
		{line: "  QUERY   show all users  ", want: ui.Command{Name: "query", Arg: "show all users"}},
		{line: "run", want: ui.Command{Name: "run"}},
		{line: "   ", want: ui.Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := ui.ParseCommand(tt.line); got != tt.want {
				t.Errorf("ParseCommand(%q): got %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

// syncBuffer guards a buffer written from task goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fakeClipboard struct {
	text string
}

func (c *fakeClipboard) Copy(text string) error {
	c.text = text
	return nil
}

// backendServer mimics the query backend.
func backendServer(t *testing.T, audioData []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/connection/connect", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DBURL string `json:"db_url"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if !strings.HasPrefix(req.DBURL, "postgres://") {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"Unsupported database URL"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Database connected successfully!", "db_url": req.DBURL})
	})
	mux.HandleFunc("GET /api/v1/query/schema", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"schema":{"users":["id","name"]}}`)
	})
	mux.HandleFunc("POST /api/v1/query/query", func(w http.ResponseWriter, r *http.Request) {
		var req domain.QueryRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Provider == "" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"llm_provider required"}`)
			return
		}
		io.WriteString(w, `{"message":"ok","results":[{"id":1,"name":"ada"}]}`)
	})
	mux.HandleFunc("POST /api/v1/query/speech-to-text", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"missing audio_file"}`)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if !bytes.Equal(data, audioData) || header.Filename != "audio.wav" {
			t.Errorf("uploaded %d bytes as %s", len(data), header.Filename)
		}
		io.WriteString(w, `{"text_query":"show all users"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestShell_EndToEnd(t *testing.T) {
	dir := t.TempDir()

	wavData, err := audio.EncodeWAV(make([]int16, 4000), 16000, 1)
	if err != nil {
		t.Fatalf("encoding wav: %v", err)
	}
	wavPath := filepath.Join(dir, "query.wav")
	if err := os.WriteFile(wavPath, wavData, 0644); err != nil {
		t.Fatalf("writing wav: %v", err)
	}

	server := backendServer(t, wavData)
	logger := discardLogger()
	m := metrics.New()

	client := api.NewClient(api.Config{BaseURL: server.URL + "/api/v1"}, server.Client(), m)
	mic := metrics.InstrumentMicrophone(audio.NewFileMicrophone(wavPath, 1024), m)
	capture := application.NewCapture(mic, []string{"audio/webm", "audio/ogg", "audio/wav"}, logger)
	store := prefs.NewFileStore(filepath.Join(dir, "preferences.json"), logger)
	clip := &fakeClipboard{}

	controller := application.NewController(client, capture, store, &application.NoopNotifier{}, clip, logger)

	out := &syncBuffer{}
	renderer := ui.NewRenderer(out, false)
	controller.OnProgress(renderer.Render)

	tasks := application.NewTasks(context.Background(), renderer.Render, logger)
	shell := ui.NewShell(strings.NewReader(""), renderer, controller, tasks, logger)

	step := func(line string) string {
		t.Helper()
		out.Reset()
		if !shell.Execute(line) {
			t.Fatalf("%q ended the shell", line)
		}
		tasks.Wait()
		return out.String()
	}

	if got := step("query show all users"); !strings.Contains(got, "[results/error] Please configure LLM provider first.") {
		t.Errorf("query without provider:\n%s", got)
	}

	if got := step("connect mysql://nope"); !strings.Contains(got, "[connection/error] Connection failed: Unsupported database URL") {
		t.Errorf("bad connect:\n%s", got)
	}

	got := step("connect postgres://localhost/app")
	for _, want := range []string{
		"[connection/info] Connecting...",
		"[connection/success] Connected to postgres://localhost/app",
		"[schema/success]\n{\n  \"users\": [",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("connect output missing %q:\n%s", want, got)
		}
	}

	if got := step("provider anthropic"); !strings.Contains(got, "Provider set to anthropic.") {
		t.Errorf("provider:\n%s", got)
	}

	if got := step("record"); !strings.Contains(got, "[results/info] Listening...") {
		t.Errorf("record:\n%s", got)
	}

	got = step("stop")
	for _, want := range []string{
		"[results/warning] Processing speech...",
		"[query] show all users",
		"[results/success] Speech converted to text. Review and run the query.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stop output missing %q:\n%s", want, got)
		}
	}
	if capture.State() != application.CaptureIdle {
		t.Errorf("capture state: got %s, want idle", capture.State())
	}

	got = step("run")
	if !strings.Contains(got, "[results/info] Executing query...") || !strings.Contains(got, `"name": "ada"`) {
		t.Errorf("run:\n%s", got)
	}

	if got := step("copy"); !strings.Contains(got, "Results copied to clipboard.") {
		t.Errorf("copy:\n%s", got)
	}
	if !strings.Contains(clip.text, `"id": 1`) {
		t.Errorf("clipboard: got %q", clip.text)
	}

	reloaded, err := store.LoadPreference(context.Background())
	if err != nil || reloaded.Provider != "anthropic" {
		t.Errorf("saved preference: got %+v, err %v", reloaded, err)
	}

	if shell.Execute("quit") {
		t.Error("quit should end the shell")
	}
}

func TestShell_RunStopsAtEndOfInput(t *testing.T) {
	out := &syncBuffer{}
	renderer := ui.NewRenderer(out, false)
	actions := &stubActions{provider: "groq"}
	runner := &inlineRunner{render: renderer.Render}

	shell := ui.NewShell(strings.NewReader("provider\nbogus\nquery  count orders \n"), renderer, actions, runner, discardLogger())

	if err := shell.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Provider: groq") {
		t.Errorf("missing provider line:\n%s", got)
	}
	if !strings.Contains(got, `Unknown command "bogus".`) || !strings.Contains(got, "Commands:") {
		t.Errorf("unknown command should print help:\n%s", got)
	}
	if len(actions.queries) != 1 || actions.queries[0] != "count orders" {
		t.Errorf("queries: got %q", actions.queries)
	}
}

func TestShell_RunQuit(t *testing.T) {
	actions := &stubActions{}
	shell := ui.NewShell(strings.NewReader("quit\nquery never\n"), ui.NewRenderer(io.Discard, false), actions, &inlineRunner{}, discardLogger())

	if err := shell.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(actions.queries) != 0 {
		t.Errorf("commands after quit ran: %q", actions.queries)
	}
}

func TestShell_Cancel(t *testing.T) {
	out := &syncBuffer{}
	runner := &inlineRunner{canceled: 2}
	shell := ui.NewShell(strings.NewReader(""), ui.NewRenderer(out, false), &stubActions{}, runner, discardLogger())

	shell.Execute("cancel")

	if !strings.Contains(out.String(), "Canceled 2 request(s).") {
		t.Errorf("output: got %q", out.String())
	}
}

type stubActions struct {
	provider string
	queries  []string
}

func (s *stubActions) Connect(context.Context, string) domain.View { return domain.View{} }
func (s *stubActions) RefreshSchema(context.Context) domain.View  { return domain.View{} }
func (s *stubActions) SubmitTextQuery(_ context.Context, text string) domain.View {
	s.queries = append(s.queries, text)
	return domain.View{Results: domain.NewStatus(domain.KindSuccess, "[]")}
}
func (s *stubActions) RunQuery(context.Context) domain.View { return domain.View{} }
func (s *stubActions) SetProvider(_ context.Context, p string) domain.View {
	s.provider = p
	return domain.View{}
}
func (s *stubActions) Provider() string                      { return s.provider }
func (s *stubActions) StartSpeech(context.Context) domain.View { return domain.View{} }
func (s *stubActions) StopSpeech(context.Context) domain.View  { return domain.View{} }
func (s *stubActions) CopyResults() domain.View                { return domain.View{} }

// inlineRunner runs actions on the calling goroutine.
type inlineRunner struct {
	render   func(domain.View)
	canceled int
}

func (r *inlineRunner) Go(_ string, fn func(ctx context.Context) domain.View) {
	view := fn(context.Background())
	if r.render != nil {
		r.render(view)
	}
}

func (r *inlineRunner) CancelAll() int { return r.canceled }
