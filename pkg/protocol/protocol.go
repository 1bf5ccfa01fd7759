// Package protocol executes named, ordered emergency-protocol step
// sequences per crisis type and level. Steps run strictly in order; a
// failed critical step aborts the execution, a failed non-critical step is
// recorded and the sequence continues. Executions are archived to history
// whether they succeed or fail; nothing here retries.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// StepType enumerates the protocol step kinds. Unknown types are a hard
// per-step failure.
type StepType string

const (
	StepGenerateResponse StepType = "generate_response"
	StepLogEvent         StepType = "log_event"
	StepNotifyHuman      StepType = "notify_human"
	StepContactEmergency StepType = "contact_emergency"
	StepProvideResources StepType = "provide_resources"
	StepScheduleFollowup StepType = "schedule_followup"
)

// Step is one unit of a scripted response sequence.
type Step struct {
	Name     string         `json:"name" yaml:"name"`
	Type     StepType       `json:"type" yaml:"type"`
	Critical bool           `json:"critical,omitempty" yaml:"critical,omitempty"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// StepResult records one executed step.
type StepResult struct {
	Name       string         `json:"name"`
	Type       StepType       `json:"type"`
	Success    bool           `json:"success"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Execution is the record of one protocol run.
type Execution struct {
	ID             string                `json:"id"`
	CrisisType     contracts.CrisisType  `json:"crisis_type"`
	CrisisLevel    contracts.CrisisLevel `json:"crisis_level"`
	StartedAt      time.Time             `json:"started_at"`
	Steps          []StepResult          `json:"steps"`
	Success        bool                  `json:"success"`
	Aborted        bool                  `json:"aborted"`
	ResponseTimeMs int64                 `json:"response_time_ms"`
}

// Notifier receives notify_human steps; Contactor receives
// contact_emergency steps. Either may be nil, in which case the step logs
// only.
type Notifier interface {
	NotifyHuman(ctx context.Context, message string, execCtx map[string]any) error
}

// Contactor forwards contact_emergency steps to an emergency gateway.
type Contactor interface {
	ContactEmergency(ctx context.Context, service string, execCtx map[string]any) error
}

// defaultResources is the built-in resource list used when a
// provide_resources step has none configured.
var defaultResources = []string{
	"988 Suicide & Crisis Lifeline — call or text 988",
	"Crisis Text Line — text HOME to 741741",
	"Emergency services — 911",
	"SAMHSA National Helpline — 1-800-662-4357",
}

// Engine executes protocols. Safe for concurrent use; protocol
// configuration is immutable after construction.
type Engine struct {
	protocols map[string][]Step
	notifier  Notifier
	contactor Contactor
	clock     func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	history []*Execution
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier wires notify_human steps to a real notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithContactor wires contact_emergency steps to a real contactor.
func WithContactor(c Contactor) Option {
	return func(e *Engine) { e.contactor = c }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds a protocol engine. Keys are "type:level", "type:default"
// or "default"; step types are validated here so a bad catalog fails at
// construction.
func NewEngine(protocols map[string][]Step, opts ...Option) (*Engine, error) {
	if protocols == nil {
		protocols = DefaultProtocols()
	}
	for key, steps := range protocols {
		for _, s := range steps {
			switch s.Type {
			case StepGenerateResponse, StepLogEvent, StepNotifyHuman,
				StepContactEmergency, StepProvideResources, StepScheduleFollowup:
			default:
				return nil, fmt.Errorf("protocol %q: unknown step type %q", key, s.Type)
			}
		}
	}

	e := &Engine{
		protocols: protocols,
		clock:     time.Now,
		logger:    slog.Default().With("component", "protocol"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Resolve returns the step list for a crisis type and level, falling back
// to the type's default, then the global default.
func (e *Engine) Resolve(crisisType contracts.CrisisType, level contracts.CrisisLevel) []Step {
	if steps, ok := e.protocols[fmt.Sprintf("%s:%s", crisisType, level)]; ok {
		return steps
	}
	if steps, ok := e.protocols[fmt.Sprintf("%s:default", crisisType)]; ok {
		return steps
	}
	return e.protocols["default"]
}

// Execute runs the resolved protocol. The execution record is archived to
// history regardless of outcome.
func (e *Engine) Execute(ctx context.Context, crisisType contracts.CrisisType, level contracts.CrisisLevel, execCtx map[string]any) *Execution {
	start := e.clock()
	exec := &Execution{
		ID:          uuid.New().String(),
		CrisisType:  crisisType,
		CrisisLevel: level,
		StartedAt:   start,
		Success:     true,
	}

	for _, step := range e.Resolve(crisisType, level) {
		result := e.runStep(ctx, step, execCtx)
		exec.Steps = append(exec.Steps, result)
		if !result.Success {
			exec.Success = false
			if step.Critical {
				exec.Aborted = true
				e.logger.Error("critical protocol step failed, aborting",
					"execution", exec.ID, "step", step.Name, "error", result.Error)
				break
			}
		}
	}

	exec.ResponseTimeMs = e.clock().Sub(start).Milliseconds()
	e.mu.Lock()
	e.history = append(e.history, exec)
	e.mu.Unlock()
	return exec
}

// History returns a copy of the archived executions.
func (e *Engine) History() []*Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Execution, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) runStep(ctx context.Context, step Step, execCtx map[string]any) StepResult {
	start := e.clock()
	result := StepResult{Name: step.Name, Type: step.Type}

	var err error
	switch step.Type {
	case StepGenerateResponse:
		result.Output = map[string]any{"response": substitute(paramString(step, "template"), execCtx)}
	case StepLogEvent:
		severity := paramString(step, "severity")
		if severity == "" {
			severity = "info"
		}
		e.logger.Info("protocol event",
			"severity", severity,
			"event", paramString(step, "event"),
			"context", execCtx,
		)
		result.Output = map[string]any{"severity": severity}
	case StepNotifyHuman:
		msg := substitute(paramString(step, "message"), execCtx)
		if e.notifier != nil {
			err = e.notifier.NotifyHuman(ctx, msg, execCtx)
		} else {
			e.logger.Warn("human notification requested", "message", msg)
		}
		result.Output = map[string]any{"message": msg}
	case StepContactEmergency:
		service := paramString(step, "service")
		if e.contactor != nil {
			err = e.contactor.ContactEmergency(ctx, service, execCtx)
		} else {
			e.logger.Warn("emergency contact requested", "service", service)
		}
		result.Output = map[string]any{"service": service}
	case StepProvideResources:
		resources := paramStrings(step, "resources")
		if len(resources) == 0 {
			resources = defaultResources
		}
		result.Output = map[string]any{"resources": resources}
	case StepScheduleFollowup:
		hours := paramInt(step, "delay_hours")
		if hours <= 0 {
			hours = 24
		}
		result.Output = map[string]any{
			"followup_at": e.clock().Add(time.Duration(hours) * time.Hour),
		}
	default:
		err = fmt.Errorf("unknown step type %q", step.Type)
	}

	result.DurationMs = e.clock().Sub(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

// substitute replaces {key} placeholders with execution-context values.
func substitute(template string, execCtx map[string]any) string {
	out := template
	for k, v := range execCtx {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return out
}

func paramString(step Step, key string) string {
	s, _ := step.Params[key].(string)
	return s
}

func paramStrings(step Step, key string) []string {
	switch v := step.Params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return nil
}

func paramInt(step Step, key string) int {
	switch v := step.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
