// Package engine evaluates text and session context against the safety-rule
// catalog. Each rule is dispatched to exactly one validation strategy; every
// rule is always evaluated — higher-priority matches never short-circuit
// lower-priority rules, because downstream scoring relies on the complete
// finding set.
package engine

import (
	"fmt"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/havenmind/sentinel/pkg/catalog"
	"github.com/havenmind/sentinel/pkg/contracts"
)

// Engine is the safety rule engine. Safe for concurrent use; it holds no
// per-evaluation state.
type Engine struct {
	holder *catalog.Holder
	scorer SentimentScorer
	guards *GuardEvaluator
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer overrides the sentiment scorer.
func WithScorer(s SentimentScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an engine over the given catalog holder. Guard expressions in
// the current catalog are compiled here so malformed configuration fails at
// construction, not at evaluate time.
func New(holder *catalog.Holder, opts ...Option) (*Engine, error) {
	guards, err := NewGuardEvaluator()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		holder: holder,
		scorer: NewLexicalScorer(),
		guards: guards,
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, rule := range holder.Current().Rules() {
		if rule.Guard == "" {
			continue
		}
		if err := guards.Compile(rule.Guard); err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.ID, err)
		}
	}
	return e, nil
}

// Guards exposes the guard evaluator for catalog reload validation.
func (e *Engine) Guards() *GuardEvaluator { return e.guards }

// Result carries one evaluation pass.
type Result struct {
	Findings    []contracts.ValidationFinding
	Sentiment   float64
	CatalogHash string
}

// Evaluate runs every catalog rule against the text. Findings come back in
// catalog order (priority descending) with no cross-strategy deduplication.
// A rule whose pattern or guard fails contributes nothing; the batch never
// aborts.
func (e *Engine) Evaluate(text string, sessionCtx map[string]any) Result {
	cat := e.holder.Current()
	text = norm.NFC.String(text)
	sentiment := e.scorer.Score(text)

	res := Result{Sentiment: sentiment, CatalogHash: cat.Hash()}
	if text == "" {
		return res
	}

	for i := range cat.Rules() {
		rule := &cat.Rules()[i]

		if rule.PatternErr != nil {
			e.logger.Warn("rule pattern disabled", "rule", rule.ID, "error", rule.PatternErr)
		}
		if rule.Guard != "" {
			ok, err := e.guards.Evaluate(rule.Guard, sessionCtx)
			if err != nil {
				e.logger.Warn("rule guard failed, rule skipped", "rule", rule.ID, "error", err)
				continue
			}
			if !ok {
				continue
			}
		}

		switch rule.Strategy {
		case contracts.StrategyKeyword:
			res.Findings = append(res.Findings, e.evalKeyword(rule, text, sentiment)...)
		case contracts.StrategyCrisisDetection:
			res.Findings = append(res.Findings, e.evalCrisisDetection(rule, text, sentiment, sessionCtx)...)
		case contracts.StrategyTherapeuticBoundary:
			res.Findings = append(res.Findings, e.evalTherapeuticBoundary(rule, text, sessionCtx)...)
		case contracts.StrategySentiment:
			res.Findings = append(res.Findings, e.evalSentiment(rule, sentiment)...)
		case contracts.StrategyContextAware:
			res.Findings = append(res.Findings, e.evalContextAware(rule, text, sessionCtx)...)
		}
	}
	return res
}

// evalKeyword emits one finding per regex match. Confidence starts at 1.0
// and, for context-aware crisis rules, shifts with sentiment.
func (e *Engine) evalKeyword(rule *catalog.CompiledRule, text string, sentiment float64) []contracts.ValidationFinding {
	if rule.Regexp == nil {
		return nil
	}

	var findings []contracts.ValidationFinding
	for _, loc := range rule.Regexp.FindAllStringIndex(text, -1) {
		confidence := 1.0
		if rule.ContextAware && rule.Category == "crisis_detection" {
			if sentiment < -0.3 {
				confidence = clamp01(confidence + 0.3)
			} else if sentiment > 0.3 {
				confidence -= 0.2
				if confidence < 0.3 {
					confidence = 0.3
				}
			}
		}

		findings = append(findings, contracts.ValidationFinding{
			RuleID:               rule.ID,
			Category:             rule.Category,
			Level:                rule.Level,
			Priority:             rule.Priority,
			Span:                 &contracts.TextSpan{Start: loc[0], End: loc[1]},
			Snippet:              text[loc[0]:loc[1]],
			Message:              fmt.Sprintf("matched %s rule %s", rule.Category, rule.ID),
			Strategy:             contracts.StrategyKeyword,
			Confidence:           confidence,
			CrisisType:           rule.CrisisType,
			TherapeuticContext:   rule.TherapeuticContext,
			Sentiment:            sentiment,
			EscalationRequired:   confidence >= rule.EscalationThreshold,
			SuggestedAlternative: rule.AlternativeTemplate,
		})
	}
	return findings
}

// evalCrisisDetection matches the fixed internal pattern catalog,
// independent of the rule's own pattern. One finding per matched crisis
// type.
func (e *Engine) evalCrisisDetection(rule *catalog.CompiledRule, text string, sentiment float64, sessionCtx map[string]any) []contracts.ValidationFinding {
	var findings []contracts.ValidationFinding
	for _, cp := range crisisPatterns {
		loc := cp.Regexp.FindStringIndex(text)
		if loc == nil {
			continue
		}

		confidence := 0.7
		if sentiment < -0.5 {
			confidence += 0.2
		} else if sentiment < -0.2 {
			confidence += 0.1
		}
		if contracts.CtxBool(sessionCtx, contracts.CtxPreviousCrisisIndicators) {
			confidence += 0.1
		}
		confidence = clamp01(confidence)

		findings = append(findings, contracts.ValidationFinding{
			RuleID:               rule.ID,
			Category:             rule.Category,
			Level:                rule.Level,
			Priority:             rule.Priority,
			Span:                 &contracts.TextSpan{Start: loc[0], End: loc[1]},
			Snippet:              text[loc[0]:loc[1]],
			Message:              fmt.Sprintf("crisis indicators detected: %s", cp.Type),
			Strategy:             contracts.StrategyCrisisDetection,
			Confidence:           confidence,
			CrisisType:           cp.Type,
			Sentiment:            sentiment,
			EscalationRequired:   confidence >= rule.EscalationThreshold,
			SuggestedAlternative: rule.AlternativeTemplate,
		})
	}
	return findings
}

// evalTherapeuticBoundary fires on the rule's pattern when one is set,
// otherwise only inside an active therapeutic session.
func (e *Engine) evalTherapeuticBoundary(rule *catalog.CompiledRule, text string, sessionCtx map[string]any) []contracts.ValidationFinding {
	var span *contracts.TextSpan
	var snippet string
	inSession := contracts.CtxBool(sessionCtx, contracts.CtxTherapeuticSession)

	if rule.Pattern != "" {
		if rule.Regexp == nil {
			return nil
		}
		loc := rule.Regexp.FindStringIndex(text)
		if loc == nil {
			return nil
		}
		span = &contracts.TextSpan{Start: loc[0], End: loc[1]}
		snippet = text[loc[0]:loc[1]]
	} else if !inSession {
		return nil
	}

	confidence := rule.Sensitivity
	if inSession && rule.TherapeuticContext == contracts.TherapeuticCrisisIntervention {
		confidence += 0.2
	}
	if rule.TherapeuticContext == contracts.TherapeuticTraumaInformed {
		confidence += 0.1
	}
	confidence = clamp01(confidence)

	return []contracts.ValidationFinding{{
		RuleID:               rule.ID,
		Category:             rule.Category,
		Level:                rule.Level,
		Priority:             rule.Priority,
		Span:                 span,
		Snippet:              snippet,
		Message:              fmt.Sprintf("therapeutic boundary concern: %s", rule.ID),
		Strategy:             contracts.StrategyTherapeuticBoundary,
		Confidence:           confidence,
		CrisisType:           rule.CrisisType,
		TherapeuticContext:   rule.TherapeuticContext,
		EscalationRequired:   confidence >= rule.EscalationThreshold,
		SuggestedAlternative: rule.AlternativeTemplate,
	}}
}

// evalSentiment fires only past the level-specific thresholds; confidence
// is the magnitude of the sentiment itself.
func (e *Engine) evalSentiment(rule *catalog.CompiledRule, sentiment float64) []contracts.ValidationFinding {
	fire := (rule.Level == contracts.LevelBlocked && sentiment < -0.7) ||
		(rule.Level == contracts.LevelWarning && sentiment < -0.4)
	if !fire {
		return nil
	}

	confidence := clamp01(-sentiment)
	return []contracts.ValidationFinding{{
		RuleID:               rule.ID,
		Category:             rule.Category,
		Level:                rule.Level,
		Priority:             rule.Priority,
		Message:              fmt.Sprintf("negative sentiment %.2f past %s threshold", sentiment, rule.Level),
		Strategy:             contracts.StrategySentiment,
		Confidence:           confidence,
		Sentiment:            sentiment,
		EscalationRequired:   confidence >= rule.EscalationThreshold,
		SuggestedAlternative: rule.AlternativeTemplate,
	}}
}

// evalContextAware gates on the rule pattern, then scales the rule's
// sensitivity by session signals. The multipliers compose.
func (e *Engine) evalContextAware(rule *catalog.CompiledRule, text string, sessionCtx map[string]any) []contracts.ValidationFinding {
	if rule.Regexp == nil {
		return nil
	}
	loc := rule.Regexp.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	confidence := rule.Sensitivity
	if contracts.CtxInt(sessionCtx, contracts.CtxSessionCount) < 3 {
		confidence *= 0.8
	}
	if contracts.CtxInt(sessionCtx, contracts.CtxPreviousViolations) > 0 {
		confidence *= 1.2
	}
	confidence = clamp01(confidence)

	return []contracts.ValidationFinding{{
		RuleID:               rule.ID,
		Category:             rule.Category,
		Level:                rule.Level,
		Priority:             rule.Priority,
		Span:                 &contracts.TextSpan{Start: loc[0], End: loc[1]},
		Snippet:              text[loc[0]:loc[1]],
		Message:              fmt.Sprintf("context-sensitive match on rule %s", rule.ID),
		Strategy:             contracts.StrategyContextAware,
		Confidence:           confidence,
		CrisisType:           rule.CrisisType,
		EscalationRequired:   confidence >= rule.EscalationThreshold,
		SuggestedAlternative: rule.AlternativeTemplate,
	}}
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
