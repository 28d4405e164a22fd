package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"easyquery/internal/domain"
)

// Actions is what the shell can ask the controller to do.
type Actions interface {
	Connect(ctx context.Context, dbURL string) domain.View
	RefreshSchema(ctx context.Context) domain.View
	SubmitTextQuery(ctx context.Context, text string) domain.View
	RunQuery(ctx context.Context) domain.View
	SetProvider(ctx context.Context, provider string) domain.View
	Provider() string
	StartSpeech(ctx context.Context) domain.View
	StopSpeech(ctx context.Context) domain.View
	CopyResults() domain.View
}

// Runner starts an action in the background.
type Runner interface {
	Go(name string, fn func(ctx context.Context) domain.View)
	CancelAll() int
}

type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits a line into a lowercase command name and the rest of
// the line, trimmed.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	return Command{
		Name: strings.ToLower(name),
		Arg:  strings.TrimSpace(arg),
	}
}

const helpText = `Commands:
  connect <url>      connect to a database
  schema             reload the database schema
  query <text>       run a natural-language query
  run                run the current query text (e.g. after speech)
  provider [name]    show or set the LLM provider (openai, gemini, anthropic, groq); "provider clear" unsets it
  record             start recording a spoken query
  stop               stop recording and convert speech to text
  cancel             cancel requests in flight
  copy               copy the last results to the clipboard
  help               show this help
  quit               exit`

type Shell struct {
	in       io.Reader
	renderer *Renderer
	actions  Actions
	runner   Runner
	logger   *slog.Logger
}

func NewShell(in io.Reader, renderer *Renderer, actions Actions, runner Runner, logger *slog.Logger) *Shell {
	return &Shell{
		in:       in,
		renderer: renderer,
		actions:  actions,
		runner:   runner,
		logger:   logger,
	}
}

// Run reads commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	s.renderer.Println("EasyQuery ready. Type \"help\" for commands.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-errCh; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				return nil
			}
			if !s.Execute(line) {
				return nil
			}
		}
	}
}

// Execute handles a single command line. It reports false when the shell
// should exit.
func (s *Shell) Execute(line string) bool {
	cmd := ParseCommand(line)
	if cmd.Name == "" {
		return true
	}

	s.logger.Debug("command", "name", cmd.Name)

	switch cmd.Name {
	case "connect":
		s.runner.Go("connect", func(ctx context.Context) domain.View {
			return s.actions.Connect(ctx, cmd.Arg)
		})
	case "schema":
		s.runner.Go("schema", s.actions.RefreshSchema)
	case "query":
		s.runner.Go("query", func(ctx context.Context) domain.View {
			return s.actions.SubmitTextQuery(ctx, cmd.Arg)
		})
	case "run":
		s.runner.Go("run", s.actions.RunQuery)
	case "provider":
		s.provider(cmd.Arg)
	case "record":
		s.runner.Go("record", s.actions.StartSpeech)
	case "stop":
		s.runner.Go("stop", s.actions.StopSpeech)
	case "cancel":
		n := s.runner.CancelAll()
		s.renderer.Println(fmt.Sprintf("Canceled %d request(s).", n))
	case "copy":
		s.renderer.Render(s.actions.CopyResults())
	case "help", "?":
		s.renderer.Println(helpText)
	case "quit", "exit":
		return false
	default:
		s.renderer.Println(fmt.Sprintf("Unknown command %q.", cmd.Name))
		s.renderer.Println(helpText)
	}
	return true
}

func (s *Shell) provider(arg string) {
	switch arg {
	case "":
		if p := s.actions.Provider(); p != "" {
			s.renderer.Println("Provider: " + p)
		} else {
			s.renderer.Println("No provider configured.")
		}
	case "clear":
		s.renderer.Render(s.actions.SetProvider(context.Background(), ""))
	default:
		s.renderer.Render(s.actions.SetProvider(context.Background(), arg))
	}
}
