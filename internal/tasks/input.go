package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Command is what a line of interactive input asks for.
type Command int

const (
	CommandNone  Command = iota // blank line
	CommandAdd                  // submit the normalized URL
	CommandQueue                // list the backlog
	CommandForce                // run a classification pass now
	CommandQuit                 // exit once the backlog drains
)

var schemePattern = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.-]*://)?(.+)$`)

// NormalizeInput parses one line typed by the user. Anything that is not a keyword is treated as a
// URL and rewritten to https, with or without a scheme in the input.
func NormalizeInput(line string) (Command, string) {
	text := strings.TrimSpace(line)
	switch strings.ToLower(text) {
	case "":
		return CommandNone, ""
	case "queue":
		return CommandQueue, ""
	case "force":
		return CommandForce, ""
	case "quit", "exit":
		return CommandQuit, ""
	}

	m := schemePattern.FindStringSubmatch(text)
	return CommandAdd, "https://" + m[1]
}

// Handle runs a line of input against d. The returned message, if any, is for display.
func (d *Downloader) Handle(ctx context.Context, line string) (string, error) {
	cmd, target := NormalizeInput(line)
	switch cmd {
	case CommandQueue:
		queue := d.Queue()
		var b strings.Builder
		fmt.Fprintf(&b, "Current queue: %d songs", len(queue))
		for i, v := range queue {
			fmt.Fprintf(&b, "\n%d: %s", i, v.Display())
		}
		return b.String(), nil
	case CommandForce:
		d.ProcessQueue()
		return "Forcing to process queue!", nil
	case CommandQuit:
		d.RequestQuit()
		return "Exiting once the queue is empty", nil
	case CommandAdd:
		return "", d.Add(ctx, target, "")
	default:
		return "", nil
	}
}
