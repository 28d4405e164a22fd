package desktop

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Clipboard writes to the system clipboard. On Linux it needs xclip,
// xsel or wl-copy on PATH.
type Clipboard struct {
	write func(text string) error
}

func NewClipboard() *Clipboard {
	return &Clipboard{write: clipboard.WriteAll}
}

func (c *Clipboard) Copy(text string) error {
	if err := c.write(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	return nil
}
