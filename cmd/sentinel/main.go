package main

import (
	"fmt"
	"io"
	"os"
)

// Dispatcher
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
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "rules":
		if len(args) < 3 {
			_, _ = fmt.Fprintln(stderr, "Usage: sentinel rules <lint|list>")
			return 2
		}
		return runRulesCmd(args[2:], stdout, stderr)
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
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "sentinel - therapeutic content safety pipeline")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sentinel validate [-rules DIR] [-context k=v]... [TEXT]")
	fmt.Fprintln(w, "      Validate a message (reads stdin when TEXT is omitted)")
	fmt.Fprintln(w, "  sentinel rules lint -dir DIR")
	fmt.Fprintln(w, "      Validate rule bundle files without loading them")
	fmt.Fprintln(w, "  sentinel rules list [-rules DIR]")
	fmt.Fprintln(w, "      Print the effective rule catalog")
	fmt.Fprintln(w, "")
}
