package desktop

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// Notifier shows messages as desktop notifications.
type Notifier struct {
	title string
	send  func(title, message string) error
}

func NewNotifier(title string) *Notifier {
	return &Notifier{
		title: title,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (n *Notifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.send(n.title, message); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}
