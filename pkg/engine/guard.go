package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// GuardEvaluator compiles and runs rule guard expressions. The session
// context is exposed as a single "input" map for maximum flexibility.
// Programs are compiled once and cached.
type GuardEvaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewGuardEvaluator builds the CEL environment for rule guards.
func NewGuardEvaluator() (*GuardEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("guard env: %w", err)
	}
	return &GuardEvaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Compile checks an expression without running it. Used at catalog load so
// a bad guard fails fast instead of at evaluate time.
func (g *GuardEvaluator) Compile(expression string) error {
	_, err := g.program(expression)
	return err
}

// Evaluate runs a guard against the session context. The result must be a
// boolean.
func (g *GuardEvaluator) Evaluate(expression string, sessionCtx map[string]any) (bool, error) {
	prog, err := g.program(expression)
	if err != nil {
		return false, err
	}

	input := sessionCtx
	if input == nil {
		input = map[string]any{}
	}
	out, _, err := prog.Eval(map[string]any{"input": input})
	if err != nil {
		return false, fmt.Errorf("guard eval: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("guard result not boolean")
	}
	return allowed, nil
}

func (g *GuardEvaluator) program(expression string) (cel.Program, error) {
	g.mu.RLock()
	prog, hit := g.cache[expression]
	g.mu.RUnlock()
	if hit {
		return prog, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prog, hit = g.cache[expression]; hit {
		return prog, nil
	}

	ast, issues := g.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("guard compile: %w", issues.Err())
	}
	prog, err := g.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("guard program: %w", err)
	}
	g.cache[expression] = prog
	return prog, nil
}
