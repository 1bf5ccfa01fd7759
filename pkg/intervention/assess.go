package intervention

import (
	"time"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// Risk-factor labels derived from crisis types.
var crisisRiskFactors = map[contracts.CrisisType][]string{
	contracts.CrisisSuicidalIdeation: {"suicidal_ideation", "expressed_desire_to_die"},
	contracts.CrisisSelfHarm:         {"self_harm_behavior"},
	contracts.CrisisSevereDepression: {"severe_depressive_symptoms"},
}

// Assess derives a crisis assessment purely from a validation result and
// session context. With no crisis detected the assessment is always Low
// with no escalation, regardless of context contents.
func Assess(result *contracts.ValidationResult, sessionCtx map[string]any, now time.Time) *contracts.CrisisAssessment {
	if !result.CrisisDetected {
		return &contracts.CrisisAssessment{
			Level:                   contracts.CrisisLow,
			Confidence:              0.5,
			RecommendedIntervention: contracts.InterventionAutomatedResponse,
			Timestamp:               now,
			SessionContext:          sessionCtx,
		}
	}

	highRisk := false
	severeDepression := false
	for _, ct := range result.CrisisTypes {
		if ct.HighRisk() {
			highRisk = true
		}
		if ct == contracts.CrisisSevereDepression {
			severeDepression = true
		}
	}

	level := contracts.CrisisModerate
	switch {
	case highRisk && result.Score < 0.15 && result.EscalationRecommended:
		level = contracts.CrisisCritical
	case highRisk && (result.Score < 0.25 || result.EscalationRecommended):
		level = contracts.CrisisHigh
	case !highRisk && severeDepression && result.Score < 0.2 && result.EscalationRecommended:
		level = contracts.CrisisHigh
	case result.Sentiment < -0.8 && result.TherapeuticAppropriateness < 0.2:
		level = contracts.CrisisHigh
	}

	assessment := &contracts.CrisisAssessment{
		Level:                   level,
		CrisisTypes:             result.CrisisTypes,
		RiskFactors:             riskFactors(result, sessionCtx),
		ProtectiveFactors:       protectiveFactors(sessionCtx),
		ImmediateRisk:           immediateRisk(level, highRisk, result),
		Confidence:              confidence(result, sessionCtx),
		RecommendedIntervention: recommendedIntervention(level),
		EscalationRequired:      result.EscalationRecommended || level.Rank() >= contracts.CrisisHigh.Rank(),
		Timestamp:               now,
		SessionContext:          sessionCtx,
	}
	return assessment
}

func riskFactors(result *contracts.ValidationResult, sessionCtx map[string]any) []string {
	var factors []string
	for _, ct := range result.CrisisTypes {
		factors = append(factors, crisisRiskFactors[ct]...)
	}
	if contracts.CtxInt(sessionCtx, contracts.CtxPreviousViolations) > 2 {
		factors = append(factors, "repeated_safety_violations")
	}
	if contracts.CtxInt(sessionCtx, contracts.CtxSessionCount) < 3 {
		factors = append(factors, "limited_session_history")
	}
	return factors
}

func protectiveFactors(sessionCtx map[string]any) []string {
	var factors []string
	if contracts.CtxInt(sessionCtx, contracts.CtxSessionCount) > 5 {
		factors = append(factors, "established_therapeutic_engagement")
	}
	if contracts.CtxInt(sessionCtx, contracts.CtxPositiveInteractions) > 0 {
		factors = append(factors, "positive_interaction_history")
	}
	if contracts.CtxBool(sessionCtx, contracts.CtxSupportNetwork) {
		factors = append(factors, "support_network_present")
	}
	if contracts.CtxBool(sessionCtx, contracts.CtxEngagedWithTherapist) {
		factors = append(factors, "engaged_with_therapist")
	}
	return factors
}

func immediateRisk(level contracts.CrisisLevel, highRisk bool, result *contracts.ValidationResult) bool {
	if level == contracts.CrisisCritical {
		return true
	}
	if highRisk && result.Score < 0.3 {
		return true
	}
	return len(result.CrisisTypes) >= 2
}

func confidence(result *contracts.ValidationResult, sessionCtx map[string]any) float64 {
	conf := 0.5
	if len(result.Findings) > 0 {
		sum := 0.0
		for _, f := range result.Findings {
			sum += f.Confidence
		}
		conf = sum / float64(len(result.Findings))
	}
	if result.Sentiment < -0.5 {
		conf += 0.1
	}
	if result.TherapeuticAppropriateness < 0.3 {
		conf += 0.1
	}
	if contracts.CtxInt(sessionCtx, contracts.CtxPreviousViolations) > 1 {
		conf += 0.05
	}
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

func recommendedIntervention(level contracts.CrisisLevel) contracts.InterventionType {
	switch level {
	case contracts.CrisisCritical:
		return contracts.InterventionEmergencyServices
	case contracts.CrisisHigh:
		return contracts.InterventionHumanOversight
	case contracts.CrisisModerate:
		return contracts.InterventionTherapeuticReferral
	default:
		return contracts.InterventionAutomatedResponse
	}
}
