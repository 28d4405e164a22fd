package desktop

import (
	"context"
	"errors"
	"testing"
)

func TestNotifier_Notify(t *testing.T) {
	var gotTitle, gotMessage string
	n := NewNotifier("EasyQuery")
	n.send = func(title, message string) error {
		gotTitle, gotMessage = title, message
		return nil
	}

	if err := n.Notify(context.Background(), "Query finished: show users"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if gotTitle != "EasyQuery" || gotMessage != "Query finished: show users" {
		t.Errorf("notification: got %q / %q", gotTitle, gotMessage)
	}
}

func TestNotifier_Errors(t *testing.T) {
	n := NewNotifier("EasyQuery")
	n.send = func(string, string) error { return errors.New("no dbus") }

	if err := n.Notify(context.Background(), "x"); err == nil {
		t.Error("expected error from failing backend")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	n.send = func(string, string) error { called = true; return nil }
	if err := n.Notify(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("error: got %v, want context.Canceled", err)
	}
	if called {
		t.Error("cancelled notify should not reach the desktop")
	}
}

func TestClipboard_Copy(t *testing.T) {
	var written string
	c := &Clipboard{write: func(text string) error {
		written = text
		return nil
	}}

	if err := c.Copy(`[{"id": 1}]`); err != nil {
		t.Fatalf("Copy error: %v", err)
	}
	if written != `[{"id": 1}]` {
		t.Errorf("clipboard: got %q", written)
	}

	c.write = func(string) error { return errors.New("xclip missing") }
	if err := c.Copy("x"); err == nil {
		t.Error("expected error from failing clipboard")
	}
}
