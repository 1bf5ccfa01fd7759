package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/havenmind/sentinel/pkg/catalog"
	"github.com/havenmind/sentinel/pkg/engine"
)

func runRulesCmd(args []string, stdout, stderr io.Writer) int {
	switch args[0] {
	case "lint":
		return runRulesLint(args[1:], stdout, stderr)
	case "list":
		return runRulesList(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown rules subcommand: %s\n", args[0])
		return 2
	}
}

func runRulesLint(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rules lint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", "", "directory of rule bundle files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dir == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -dir is required")
		return 2
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	loader := catalog.NewLoader()
	guards, err := engine.NewGuardEvaluator()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	failures := 0
	checked := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		checked++
		path := filepath.Join(*dir, entry.Name())
		bundle, err := loader.LoadFile(path)
		if err != nil {
			failures++
			_, _ = fmt.Fprintf(stdout, "FAIL  %s: %v\n", entry.Name(), err)
			continue
		}
		ok := true
		for _, rule := range bundle.Rules {
			if rule.Guard == "" {
				continue
			}
			if err := guards.Compile(rule.Guard); err != nil {
				ok = false
				failures++
				_, _ = fmt.Fprintf(stdout, "FAIL  %s: rule %s guard: %v\n", entry.Name(), rule.ID, err)
			}
		}
		if ok {
			_, _ = fmt.Fprintf(stdout, "OK    %s: %s %s (%d rules)\n",
				entry.Name(), bundle.Name, bundle.Version, len(bundle.Rules))
		}
	}

	_, _ = fmt.Fprintf(stdout, "\n%d files checked, %d problems\n", checked, failures)
	if failures > 0 {
		return 1
	}
	return 0
}

func runRulesList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rules list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("rules", "", "directory of rule bundle files (default: built-in rules)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var cat *catalog.Catalog
	var err error
	if *dir == "" {
		cat, err = catalog.Default()
	} else {
		loaded, lerr := catalog.NewLoader().LoadDir(*dir)
		if lerr != nil {
			err = lerr
		} else {
			cat, err = catalog.New(loaded)
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "catalog hash %s (%d rules)\n\n", cat.Hash(), cat.Len())
	for _, rule := range cat.Rules() {
		status := "ok"
		if rule.PatternErr != nil {
			status = "pattern-error"
		}
		_, _ = fmt.Fprintf(stdout, "%-28s %-22s %-8s prio=%-4d %s\n",
			rule.ID, rule.Strategy, rule.Level, rule.Priority, status)
	}
	return 0
}
