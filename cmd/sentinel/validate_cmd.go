package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/havenmind/sentinel/pkg/config"
	"github.com/havenmind/sentinel/pkg/pipeline"
)

// contextFlags collects repeated -context k=v pairs.
type contextFlags map[string]any

func (c contextFlags) String() string { return "" }

func (c contextFlags) Set(value string) error {
	key, raw, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		c[key] = n
	} else if b, err := strconv.ParseBool(raw); err == nil {
		c[key] = b
	} else {
		c[key] = raw
	}
	return nil
}

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesDir := fs.String("rules", "", "directory of rule bundle files (default: built-in rules)")
	assess := fs.Bool("assess", false, "include a crisis assessment in the output")
	sessionCtx := contextFlags{}
	fs.Var(sessionCtx, "context", "session context entry as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text, code := readText(fs.Args(), stderr)
	if code != 0 {
		return code
	}

	cfg := config.Load()
	if *rulesDir != "" {
		cfg.RulesDir = *rulesDir
	}

	ctx := context.Background()
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = p.Shutdown(ctx) }()

	result := p.ValidateText(ctx, text, sessionCtx)

	output := map[string]any{"result": result}
	if *assess {
		output["assessment"] = p.AssessCrisis(ctx, result, sessionCtx)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if result.Level.Severity() > 0 {
		return 3
	}
	return 0
}

func readText(args []string, stderr io.Writer) (string, int) {
	if len(args) > 0 {
		return strings.Join(args, " "), 0
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error reading stdin: %v\n", err)
		return "", 1
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		_, _ = fmt.Fprintln(stderr, "Error: no input text")
		return "", 2
	}
	return text, 0
}
