// File: cmd/screenpilot/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/screenpilot/cmd"
	"github.com/xkilldash9x/screenpilot/internal/agent"
	"github.com/xkilldash9x/screenpilot/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  .-----.
  | [_] |   screenpilot v%s
  |     |   start <task> | stop | status | exit
  |  o  |   any other line runs as a command, e.g. "key show"
  '-----'

`

// taskSession is the part of cmd.Session the shell drives.
type taskSession interface {
	Start(task string) (string, error)
	Stop() bool
	Status() agent.Snapshot
	Close()
}

// Function variables for dependency injection in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	openSession = func(ctx context.Context, out io.Writer) (taskSession, error) {
		return cmd.NewSession(ctx, os.Getenv("SCREENPILOT_CONFIG"), out)
	}
	runCommand = func(ctx context.Context, args []string, out io.Writer) error {
		rootCmd := cmd.NewRootCommand()
		rootCmd.SetArgs(args)
		rootCmd.SetOut(out)
		return rootCmd.ExecuteContext(ctx)
	}
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	fmt.Printf(banner, cmd.Version)
	if err := runShell(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
	fmt.Println("Exiting screenpilot.")
}

// runShell reads commands until EOF or exit. A single session, opened by the
// first start, lives for the whole shell.
func runShell(ctx context.Context, in io.Reader, out io.Writer) error {
	var session taskSession
	defer func() {
		if session != nil {
			session.Close()
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "screenpilot > ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch verb {
		case "exit", "quit":
			return nil
		case "start":
			if session == nil {
				s, err := openSession(ctx, out)
				if err != nil {
					fmt.Fprintln(out, "Error:", err)
					continue
				}
				session = s
				context.AfterFunc(ctx, func() { s.Stop() })
			}
			if _, err := session.Start(rest); err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
		case "stop":
			if session == nil || !session.Stop() {
				fmt.Fprintln(out, "No task is running.")
			}
		case "status":
			if session == nil {
				fmt.Fprintln(out, "IDLE, no task has run")
				continue
			}
			fmt.Fprintln(out, cmd.FormatStatus(session.Status()))
		default:
			executeInteractiveCommand(ctx, strings.Fields(line), out)
		}
	}
	return scanner.Err()
}

// executeInteractiveCommand runs one line through a fresh command tree so
// flags never leak between lines. Errors and panics are reported, not fatal.
func executeInteractiveCommand(ctx context.Context, args []string, out io.Writer) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(out, "Error: command panicked: %v\n", r)
		}
	}()
	if err := runCommand(ctx, args, out); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Error:", err)
	}
}

// handlePanic records an unrecovered panic in panic.log before exiting.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}
	fmt.Fprintf(os.Stderr, "screenpilot crashed. Details logged to %s\n", panicLogFile)
	osExit(2)
}
