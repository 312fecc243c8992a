package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"intake/pkg/config"
	"intake/pkg/dialogue"
	"intake/pkg/session"
)

// runChat holds a conversation on the terminal against in-memory stores.
func runChat(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath, secretsDir := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(*configPath, *secretsDir, stdin, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg.Store.Backend = config.BackendMemory
	cfg.Session.Backend = config.BackendMemory
	cfg.Session.TTL = 0

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer a.Close()

	in := bufio.NewReader(stdin)
	fmt.Fprintln(stdout, "Type your messages. /reset starts over, /quit exits.")
	resp, err := a.engine.HandleMessage(ctx, dialogue.Request{})
	if err != nil {
		fmt.Fprintf(stderr, "Chat failed: %v\n", err)
		return 1
	}
	printTurn(stdout, resp)
	sessionID := resp.SessionID

	for {
		fmt.Fprint(stdout, "> ")
		line, readErr := in.ReadString('\n')
		line = strings.TrimSpace(line)

		switch {
		case line == "/quit" || line == "/exit":
			return 0
		case line != "" || readErr == nil:
			req := dialogue.Request{SessionID: sessionID, Message: line}
			if line == "/reset" {
				req = dialogue.Request{SessionID: sessionID, Reset: true}
			}
			resp, err := a.engine.HandleMessage(ctx, req)
			if err != nil {
				fmt.Fprintf(stderr, "Chat failed: %v\n", err)
				return 1
			}
			printTurn(stdout, resp)
		}

		if readErr != nil {
			fmt.Fprintln(stdout)
			return 0
		}
		if ctx.Err() != nil {
			return 0
		}
	}
}

func printTurn(w io.Writer, resp *dialogue.Response) {
	fmt.Fprintf(w, "\n%s\n", resp.AssistantMessage)
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(w, "  [%s]\n", strings.Join(resp.Suggestions, " | "))
	}
	if resp.Phase == session.PhaseDone && resp.RequestID != "" {
		fmt.Fprintf(w, "  (request %s, item %s)\n", resp.RequestID, resp.TicketID)
	}
}
