// Package contracts defines the shared data model of the safety validation
// and crisis-intervention pipeline: closed enums, rule and finding records,
// assessments, interventions, and escalations.
//
// All enum tags are parsed fail-fast: an unknown tag in configuration is a
// load-time error, never an evaluate-time one.
package contracts

import "fmt"

// SafetyLevel classifies validated content.
type SafetyLevel string

const (
	LevelSafe    SafetyLevel = "safe"
	LevelWarning SafetyLevel = "warning"
	LevelBlocked SafetyLevel = "blocked"
)

// Severity orders safety levels for max-severity aggregation.
func (l SafetyLevel) Severity() int {
	switch l {
	case LevelBlocked:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// ParseSafetyLevel rejects unknown level tags.
func ParseSafetyLevel(s string) (SafetyLevel, error) {
	switch SafetyLevel(s) {
	case LevelSafe, LevelWarning, LevelBlocked:
		return SafetyLevel(s), nil
	}
	return "", fmt.Errorf("unknown safety level %q", s)
}

// ValidationStrategy selects how a rule is evaluated. A rule is evaluated by
// exactly one strategy.
type ValidationStrategy string

const (
	StrategyKeyword             ValidationStrategy = "keyword"
	StrategySentiment           ValidationStrategy = "sentiment"
	StrategyContextAware        ValidationStrategy = "context_aware"
	StrategyCrisisDetection     ValidationStrategy = "crisis_detection"
	StrategyTherapeuticBoundary ValidationStrategy = "therapeutic_boundary"
)

// ParseValidationStrategy rejects unknown strategy tags.
func ParseValidationStrategy(s string) (ValidationStrategy, error) {
	switch ValidationStrategy(s) {
	case StrategyKeyword, StrategySentiment, StrategyContextAware,
		StrategyCrisisDetection, StrategyTherapeuticBoundary:
		return ValidationStrategy(s), nil
	}
	return "", fmt.Errorf("unknown validation strategy %q", s)
}

// CrisisType categorizes the nature of detected risk.
type CrisisType string

const (
	CrisisSuicidalIdeation CrisisType = "suicidal_ideation"
	CrisisSelfHarm         CrisisType = "self_harm"
	CrisisSevereDepression CrisisType = "severe_depression"
)

// HighRisk reports whether the type warrants the tightest assessment path.
func (c CrisisType) HighRisk() bool {
	return c == CrisisSuicidalIdeation || c == CrisisSelfHarm
}

// ParseCrisisType rejects unknown crisis tags.
func ParseCrisisType(s string) (CrisisType, error) {
	switch CrisisType(s) {
	case CrisisSuicidalIdeation, CrisisSelfHarm, CrisisSevereDepression:
		return CrisisType(s), nil
	}
	return "", fmt.Errorf("unknown crisis type %q", s)
}

// CrisisLevel grades an assessment.
type CrisisLevel string

const (
	CrisisLow      CrisisLevel = "low"
	CrisisModerate CrisisLevel = "moderate"
	CrisisHigh     CrisisLevel = "high"
	CrisisCritical CrisisLevel = "critical"
)

// Rank orders crisis levels, lowest first.
func (l CrisisLevel) Rank() int {
	switch l {
	case CrisisCritical:
		return 3
	case CrisisHigh:
		return 2
	case CrisisModerate:
		return 1
	default:
		return 0
	}
}

// InterventionType is the recommended response tier for an assessment.
type InterventionType string

const (
	InterventionAutomatedResponse   InterventionType = "automated_response"
	InterventionTherapeuticReferral InterventionType = "therapeutic_referral"
	InterventionHumanOversight      InterventionType = "human_oversight"
	InterventionEmergencyServices   InterventionType = "emergency_services"
)

// EscalationStatus tracks the escalation leg of an intervention.
type EscalationStatus string

const (
	EscalationNone      EscalationStatus = "none"
	EscalationPending   EscalationStatus = "pending"
	EscalationCompleted EscalationStatus = "completed"
	EscalationFailed    EscalationStatus = "failed"
)

// EscalationState is the lifecycle state of an Escalation record.
type EscalationState string

const (
	EscalationStatePending      EscalationState = "pending"
	EscalationStateAcknowledged EscalationState = "acknowledged"
	EscalationStateResolved     EscalationState = "resolved"
	EscalationStateCritical     EscalationState = "critical"
)

// NotificationChannel identifies one outbound notification transport.
type NotificationChannel string

const (
	ChannelEmail     NotificationChannel = "email"
	ChannelSMS       NotificationChannel = "sms"
	ChannelPhone     NotificationChannel = "phone"
	ChannelDashboard NotificationChannel = "dashboard"
	ChannelPager     NotificationChannel = "pager"
)

// ParseNotificationChannel rejects unknown channel tags.
func ParseNotificationChannel(s string) (NotificationChannel, error) {
	switch NotificationChannel(s) {
	case ChannelEmail, ChannelSMS, ChannelPhone, ChannelDashboard, ChannelPager:
		return NotificationChannel(s), nil
	}
	return "", fmt.Errorf("unknown notification channel %q", s)
}

// Therapeutic context tags carried by rules. These are advisory labels, not
// a closed set, but the known ones influence boundary-rule confidence.
const (
	TherapeuticCrisisIntervention = "crisis_intervention"
	TherapeuticTraumaInformed     = "trauma_informed"
)

// Escalation record types.
const (
	EscalationTypeStandard          = "standard"
	EscalationTypeEmergencyServices = "emergency_services"
)

// Intervention resolution states.
const (
	ResolutionActive   = "active"
	ResolutionResolved = "resolved"
)
