package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"easyquery/internal/domain"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

// Renderer writes panel updates to a terminal. Calls are serialized so
// views from concurrent tasks never interleave.
type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

func NewRenderer(out io.Writer, color bool) *Renderer {
	return &Renderer{out: out, color: color}
}

// NewTerminalRenderer writes to stdout, with color only when stdout is a
// terminal.
func NewTerminalRenderer() *Renderer {
	fd := os.Stdout.Fd()
	color := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return NewRenderer(colorable.NewColorableStdout(), color)
}

func (r *Renderer) Render(v domain.View) {
	if v.Empty() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v.Connection != nil {
		r.panel("connection", v.Connection)
	}
	if v.QueryText != nil {
		r.line(r.label("query", ""), *v.QueryText)
	}
	if v.Results != nil {
		r.panel("results", v.Results)
	}
	if v.Schema != nil {
		r.panel("schema", v.Schema)
	}
}

// Println writes plain text outside of any panel.
func (r *Renderer) Println(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, text)
}

func (r *Renderer) panel(name string, s *domain.Status) {
	r.line(r.label(name, s.Kind), s.Text)
}

// line prints multi-line text below its label so JSON stays aligned.
func (r *Renderer) line(label, text string) {
	if strings.Contains(text, "\n") {
		fmt.Fprintf(r.out, "%s\n%s\n", label, text)
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", label, text)
}

func (r *Renderer) label(name string, kind domain.Kind) string {
	text := "[" + name + "]"
	if kind != "" {
		text = "[" + name + "/" + string(kind) + "]"
	}
	if !r.color {
		return text
	}
	return colorFor(kind) + text + ansiReset
}

func colorFor(kind domain.Kind) string {
	switch kind {
	case domain.KindSuccess:
		return ansiGreen
	case domain.KindWarning:
		return ansiYellow
	case domain.KindError:
		return ansiRed
	case domain.KindInfo:
		return ansiCyan
	default:
		return ansiBold
	}
}
