// Command critwatch inspects recordings of critical native calls.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Tap30/critwatch"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "count":
		return runCountCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "info":
		return runInfoCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: critwatch <command> [arguments] [FILE]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	_, _ = fmt.Fprintln(w, "  count   Count events, optionally filtered by kind, method or copies")
	_, _ = fmt.Fprintln(w, "  verify  Exit 0 if the recording holds at least one event of a kind")
	_, _ = fmt.Fprintln(w, "  info    Print the recording manifest, or its entries with -entries")
	_, _ = fmt.Fprintln(w, "\nWithout FILE the recording is loaded from the CRITWATCH_* destination.")
}

// openRecording opens FILE when given, or the configured destination.
func openRecording(cmd *flag.FlagSet) (*critwatch.Reader, error) {
	switch cmd.NArg() {
	case 0:
		cfg, err := critwatch.LoadConfig()
		if err != nil {
			return nil, err
		}
		ctx := context.Background()
		storage, err := cfg.Storage(ctx)
		if err != nil {
			return nil, err
		}
		return critwatch.OpenStorage(ctx, storage)
	case 1:
		return critwatch.Open(cmd.Arg(0))
	default:
		return nil, fmt.Errorf("expected one FILE, got %d arguments", cmd.NArg())
	}
}

// runCountCmd implements `critwatch count`.
//
// Exit codes:
//
//	0 = counted
//	2 = runtime error
func runCountCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("count", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		kind       string
		method     string
		copiesOnly bool
		jsonOutput bool
	)

	cmd.StringVar(&kind, "kind", "", "Only count events of this kind")
	cmd.StringVar(&method, "method", "", "Only count critical calls through this method")
	cmd.BoolVar(&copiesOnly, "copies", false, "Only count critical calls that copied the data")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	preds := []func(critwatch.DecodedEvent) bool{}
	if kind != "" {
		preds = append(preds, critwatch.KindIs(kind))
	}
	if method != "" {
		preds = append(preds, critwatch.FieldEquals("methodName", method))
	}
	if copiesOnly {
		preds = append(preds, critwatch.FieldEquals("isCopy", true))
	}

	r, err := openRecording(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer r.Close()

	n, err := critwatch.CountWhere(r, critwatch.And(preds...))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.Marshal(map[string]any{"count": n, "kind": kind, "method": method, "copies": copiesOnly})
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintln(stdout, n)
	}
	return 0
}

// runVerifyCmd implements `critwatch verify`.
//
// Exit codes:
//
//	0 = at least one event of the kind was found
//	1 = none found
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var kind string
	cmd.StringVar(&kind, "kind", critwatch.CriticalCallKind, "Event kind that must be present")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	r, err := openRecording(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer r.Close()

	n, err := critwatch.CountWhere(r, critwatch.KindIs(kind))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if n == 0 {
		_, _ = fmt.Fprintf(stdout, "FAILED: no %s events\n", kind)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "PASSED: %d %s events\n", n, kind)
	return 0
}

// runInfoCmd implements `critwatch info`.
func runInfoCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("info", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	entries := cmd.Bool("entries", false, "List archive entries instead of the manifest")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	r, err := openRecording(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer r.Close()

	if *entries {
		for _, name := range r.Entries() {
			_, _ = fmt.Fprintln(stdout, name)
		}
		return 0
	}

	data, _ := json.MarshalIndent(r.Manifest(), "", "  ")
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
