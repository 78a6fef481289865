// probe-shell spawns the mongo shell, sends a few commands and prints the
// raw bytes left behind each prompt, for checking shell.idle_patterns
// against a given shell version and terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/adapters/realrand"
	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/prompt"
	"github.com/acolita/mongo-shell-mcp/internal/pty"
	"github.com/acolita/mongo-shell-mcp/internal/shell"
)

func main() {
	var (
		path    string
		term    string
		timeout time.Duration
	)
	flag.StringVar(&path, "mongo", "mongo", "mongo shell binary")
	flag.StringVar(&term, "term", "xterm", "TERM for the child")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "Prompt timeout")
	flag.Parse()

	lines := flag.Args()
	if len(lines) == 0 {
		lines = []string{"1+1", "", "nop()"}
	}

	token, err := prompt.NewToken(realrand.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	matcher, err := prompt.NewMatcher(token, config.DefaultContinuationPattern, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Spawning %s (TERM=%s)...\n", path, term)
	proc, err := pty.Spawn(pty.Options{Path: path, Term: term, Token: token})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error spawning shell: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	driver := shell.NewDriver(proc, matcher)
	defer driver.Close()

	ctx := context.Background()
	if _, err := driver.AwaitPrompt(ctx, timeout); err != nil {
		fmt.Fprintf(os.Stderr, "No first prompt: %v\n", err)
		os.Exit(1)
	}
	report("startup", driver)

	for _, line := range lines {
		fmt.Printf("\nSending: %q\n", line)
		if err := driver.Send(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		resp, err := driver.AwaitPrompt(ctx, timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  %s prompt, before (%d bytes): %q\n", resp.Kind, len(resp.Before), resp.Before)
		report(line, driver)
	}

	fmt.Printf("\nDefault idle pattern: %q\n", config.DefaultIdlePattern)
}

// report prints what the shell left behind the prompt once it went quiet.
// The bytes are collected raw, so a redrawn prompt token shows up as is.
func report(label string, d *shell.Driver) {
	pending, err := d.Collect(context.Background(), 250*time.Millisecond)
	fmt.Printf("  pending after %q (%d bytes): %q\n", label, len(pending), pending)
	fmt.Printf("  hex: %s\n", logging.HexDump([]byte(pending), 64))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
