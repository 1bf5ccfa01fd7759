package catalog

import "github.com/havenmind/sentinel/pkg/contracts"

// DefaultRules is the built-in rule set used when no external bundle is
// configured. External bundles replace it wholesale; they do not merge.
func DefaultRules() []contracts.SafetyRule {
	return []contracts.SafetyRule{
		{
			ID:                  "crisis-detect-001",
			Category:            "crisis_detection",
			Priority:            100,
			Level:               contracts.LevelBlocked,
			Strategy:            contracts.StrategyCrisisDetection,
			Sensitivity:         0.9,
			ContextAware:        true,
			EscalationThreshold: 0.8,
		},
		{
			ID:                  "crisis-keyword-001",
			Category:            "crisis_detection",
			Priority:            95,
			Level:               contracts.LevelBlocked,
			Strategy:            contracts.StrategyKeyword,
			Pattern:             `\b(kill (myself|me)|end my (own )?life|want to die|suicide|suicidal)\b`,
			CaseInsensitive:     true,
			Sensitivity:         0.9,
			ContextAware:        true,
			CrisisType:          contracts.CrisisSuicidalIdeation,
			EscalationThreshold: 0.8,
		},
		{
			ID:                  "harm-others-001",
			Category:            "harm_to_others",
			Priority:            90,
			Level:               contracts.LevelBlocked,
			Strategy:            contracts.StrategyKeyword,
			Pattern:             `\b(kill (him|her|them|you)|hurt (him|her|them|someone)|make (him|her|them) pay)\b`,
			CaseInsensitive:     true,
			Sensitivity:         0.85,
			EscalationThreshold: 0.9,
		},
		{
			ID:                  "ethics-boundary-001",
			Category:            "professional_ethics",
			Priority:            70,
			Level:               contracts.LevelWarning,
			Strategy:            contracts.StrategyKeyword,
			Pattern:             `(meet (me|up) in person|be my (friend|girlfriend|boyfriend)|personal relationship with you)`,
			CaseInsensitive:     true,
			Sensitivity:         0.7,
			AlternativeTemplate: "Our work together stays within this therapeutic space. I want to keep this a place where you can speak freely and safely.",
		},
		{
			ID:          "sentiment-block-001",
			Category:    "emotional_state",
			Priority:    60,
			Level:       contracts.LevelBlocked,
			Strategy:    contracts.StrategySentiment,
			Sensitivity: 0.8,
		},
		{
			ID:          "sentiment-warn-001",
			Category:    "emotional_state",
			Priority:    55,
			Level:       contracts.LevelWarning,
			Strategy:    contracts.StrategySentiment,
			Sensitivity: 0.6,
		},
		{
			ID:                 "therapeutic-boundary-001",
			Category:           "therapeutic_boundary",
			Priority:           50,
			Level:              contracts.LevelWarning,
			Strategy:           contracts.StrategyTherapeuticBoundary,
			Pattern:            `(diagnose me|what medication|prescribe|dosage)`,
			CaseInsensitive:    true,
			Sensitivity:        0.6,
			TherapeuticContext: contracts.TherapeuticCrisisIntervention,
		},
		{
			ID:              "context-probe-001",
			Category:        "behavioral_pattern",
			Priority:        40,
			Level:           contracts.LevelWarning,
			Strategy:        contracts.StrategyContextAware,
			Pattern:         `(ignore (the|your) (rules|guidelines)|pretend (you are|to be)|bypass)`,
			CaseInsensitive: true,
			Sensitivity:     0.7,
		},
	}
}

// Default builds a catalog from DefaultRules.
func Default() (*Catalog, error) {
	return New(DefaultRules())
}
