// Package tui is the console chat transport used by "menuflow chat".
package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
)

// ConsoleRoom is the room id of console conversations.
const ConsoleRoom = "console"

// Console is a Messenger that prints bot messages to a writer and reads user
// messages line by line.
type Console struct {
	Out    io.Writer
	Prompt string
	// Render, when set, turns message text (markdown) into terminal output.
	Render func(string) (string, error)

	mu sync.Mutex
}

// NewConsole creates a console printing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{Out: out, Prompt: "> "}
}

// SendMessage prints one bot message.
func (c *Console) SendMessage(ctx context.Context, roomID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Render != nil {
		if rendered, err := c.Render(text); err == nil {
			_, err := io.WriteString(c.Out, rendered)
			return err
		}
	}
	_, err := fmt.Fprintf(c.Out, "%s\n", text)
	return err
}

// Run feeds each line of in to p as a message from userID until in is
// exhausted, "/quit" is typed or ctx is done. Step errors are printed and
// the conversation goes on.
func (c *Console) Run(ctx context.Context, in io.Reader, p ports.Processor, userID string) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		c.prompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			}

			in := domain.Inbound{UserID: userID, RoomID: ConsoleRoom, Body: line}
			if _, err := p.Process(ctx, in, c); err != nil {
				c.mu.Lock()
				fmt.Fprintf(c.Out, "error: %v\n", err)
				c.mu.Unlock()
			}
		}
	}
}

func (c *Console) prompt() {
	if c.Prompt == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.Out, c.Prompt)
}
