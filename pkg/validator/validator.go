// Package validator orchestrates the safety rule engine into a full
// therapeutic validation: overall level, composite score, crisis flags,
// therapeutic appropriateness, alternative content, monitoring flags, and
// an audit trail.
//
// The validator is pure with respect to its inputs apart from in-memory
// metric counters, which are monotonic for the process lifetime.
package validator

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/engine"
)

// Validator is the therapeutic validator. Safe for concurrent use.
type Validator struct {
	engine       *engine.Engine
	alternatives bool
	clock        func() time.Time
	logger       *slog.Logger

	validations      atomic.Int64
	violations       atomic.Int64
	crisisDetections atomic.Int64
	escalations      atomic.Int64
}

// Option configures a Validator.
type Option func(*Validator)

// WithAlternatives toggles alternative-content generation.
func WithAlternatives(enabled bool) Option {
	return func(v *Validator) { v.alternatives = enabled }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) { v.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New creates a validator over the given engine. Alternatives are enabled
// by default.
func New(e *engine.Engine, opts ...Option) *Validator {
	v := &Validator{
		engine:       e,
		alternatives: true,
		clock:        time.Now,
		logger:       slog.Default().With("component", "validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateText validates one block of user-authored text against the active
// catalog. The session context is optional; nil is treated as empty.
func (v *Validator) ValidateText(text string, sessionCtx map[string]any) *contracts.ValidationResult {
	v.validations.Add(1)
	trail := []contracts.AuditEvent{{
		Timestamp: v.clock(),
		Event:     "validation_started",
		Detail:    map[string]any{"text_length": len(text)},
	}}

	eval := v.engine.Evaluate(text, sessionCtx)
	trail = append(trail, contracts.AuditEvent{
		Timestamp: v.clock(),
		Event:     "rules_evaluated",
		Detail:    map[string]any{"findings": len(eval.Findings), "catalog_hash": eval.CatalogHash},
	})

	result := &contracts.ValidationResult{
		Level:       contracts.LevelSafe,
		Findings:    eval.Findings,
		Sentiment:   eval.Sentiment,
		CatalogHash: eval.CatalogHash,
	}

	var blocked, warnings int
	crisisSeen := make(map[contracts.CrisisType]bool)
	for _, f := range eval.Findings {
		if f.Level.Severity() > result.Level.Severity() {
			result.Level = f.Level
		}
		switch f.Level {
		case contracts.LevelBlocked:
			blocked++
		case contracts.LevelWarning:
			warnings++
		}
		if f.CrisisType != "" && !crisisSeen[f.CrisisType] {
			crisisSeen[f.CrisisType] = true
			result.CrisisTypes = append(result.CrisisTypes, f.CrisisType)
		}
		if f.EscalationRequired {
			result.EscalationRecommended = true
		}
	}
	result.CrisisDetected = len(result.CrisisTypes) > 0
	if result.CrisisDetected {
		result.EscalationRecommended = true
		v.crisisDetections.Add(1)
		trail = append(trail, contracts.AuditEvent{
			Timestamp: v.clock(),
			Event:     "crisis_detected",
			Detail:    map[string]any{"crisis_types": result.CrisisTypes},
		})
	}

	result.Score = compositeScore(eval.Findings, blocked, warnings, result.CrisisDetected, eval.Sentiment)
	result.TherapeuticAppropriateness = appropriateness(len(eval.Findings), blocked, warnings, eval.Sentiment)
	result.MonitoringFlags = monitoringFlags(result)

	if result.Level != contracts.LevelSafe {
		v.violations.Add(1)
		if v.alternatives {
			result.AlternativeContent = alternativeContent(result)
			if result.AlternativeContent != "" {
				trail = append(trail, contracts.AuditEvent{Timestamp: v.clock(), Event: "alternative_generated"})
			}
		}
	}
	if result.EscalationRecommended {
		v.escalations.Add(1)
		trail = append(trail, contracts.AuditEvent{Timestamp: v.clock(), Event: "escalation_recommended"})
	}

	trail = append(trail, contracts.AuditEvent{
		Timestamp: v.clock(),
		Event:     "validation_completed",
		Detail:    map[string]any{"level": result.Level, "score": result.Score},
	})
	result.AuditTrail = trail

	v.logger.Debug("text validated",
		"level", result.Level,
		"score", result.Score,
		"findings", len(result.Findings),
		"crisis", result.CrisisDetected,
	)
	return result
}

// Metrics is a snapshot of the validator's process-lifetime counters.
type Metrics struct {
	Validations      int64 `json:"validations"`
	Violations       int64 `json:"violations"`
	CrisisDetections int64 `json:"crisis_detections"`
	Escalations      int64 `json:"escalations"`
}

// Metrics returns the current counter snapshot. Counters never reset
// except by process restart.
func (v *Validator) Metrics() Metrics {
	return Metrics{
		Validations:      v.validations.Load(),
		Violations:       v.violations.Load(),
		CrisisDetections: v.crisisDetections.Load(),
		Escalations:      v.escalations.Load(),
	}
}

func compositeScore(findings []contracts.ValidationFinding, blocked, warnings int, crisis bool, sentiment float64) float64 {
	if len(findings) == 0 {
		switch {
		case sentiment < -0.5:
			return 0.7
		case sentiment > 0.5:
			return 1.0
		default:
			return 0.9
		}
	}

	score := 1.0
	score -= 0.3 * float64(blocked)
	score -= 0.15 * float64(warnings)
	if crisis {
		score -= 0.2
	}
	score += sentiment * 0.1
	return clamp01(score)
}

func appropriateness(findings, blocked, warnings int, sentiment float64) float64 {
	if findings == 0 {
		switch {
		case sentiment >= 0:
			return clamp01(0.8 + sentiment*0.2)
		case sentiment > -0.3:
			return 0.7
		default:
			return 0.6
		}
	}

	score := 1.0
	score -= 0.4 * float64(blocked)
	score -= 0.2 * float64(warnings)
	return clamp01(score)
}

func monitoringFlags(r *contracts.ValidationResult) []string {
	var flags []string
	if r.CrisisDetected {
		flags = append(flags, "crisis_detected")
	}
	if r.Sentiment < -0.7 {
		flags = append(flags, "severe_negative_sentiment")
	} else if r.Sentiment < -0.3 {
		flags = append(flags, "negative_sentiment")
	}
	if r.EscalationRecommended {
		flags = append(flags, "escalation_required")
	}
	if r.Level == contracts.LevelBlocked {
		flags = append(flags, "content_blocked")
	}
	return flags
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
