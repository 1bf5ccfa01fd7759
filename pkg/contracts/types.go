package contracts

import "time"

// SafetyRule is one configured validation rule. Rules are immutable once
// loaded; runtime mutation happens by building a new catalog version.
type SafetyRule struct {
	ID                  string             `json:"id" yaml:"id"`
	Category            string             `json:"category" yaml:"category"`
	Priority            int                `json:"priority" yaml:"priority"`
	Level               SafetyLevel        `json:"level" yaml:"level"`
	Pattern             string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	CaseInsensitive     bool               `json:"case_insensitive,omitempty" yaml:"case_insensitive,omitempty"`
	Strategy            ValidationStrategy `json:"validation_type" yaml:"validation_type"`
	Sensitivity         float64            `json:"sensitivity" yaml:"sensitivity"`
	ContextAware        bool               `json:"context_aware,omitempty" yaml:"context_aware,omitempty"`
	TherapeuticContext  string             `json:"therapeutic_context,omitempty" yaml:"therapeutic_context,omitempty"`
	CrisisType          CrisisType         `json:"crisis_type,omitempty" yaml:"crisis_type,omitempty"`
	EscalationThreshold float64            `json:"escalation_threshold" yaml:"escalation_threshold"`
	AlternativeTemplate string             `json:"alternative_template,omitempty" yaml:"alternative_template,omitempty"`
	// Guard is an optional CEL expression over the session context; a rule
	// whose guard evaluates false is skipped for that input.
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// TextSpan locates a match inside the validated text.
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ValidationFinding is one rule match against input text. Immutable,
// produced once per match.
type ValidationFinding struct {
	RuleID               string             `json:"rule_id"`
	Category             string             `json:"category"`
	Level                SafetyLevel        `json:"level"`
	Priority             int                `json:"priority"`
	Span                 *TextSpan          `json:"span,omitempty"`
	Snippet              string             `json:"snippet,omitempty"`
	Message              string             `json:"message"`
	Strategy             ValidationStrategy `json:"strategy"`
	Confidence           float64            `json:"confidence"`
	CrisisType           CrisisType         `json:"crisis_type,omitempty"`
	TherapeuticContext   string             `json:"therapeutic_context,omitempty"`
	Sentiment            float64            `json:"sentiment,omitempty"`
	EscalationRequired   bool               `json:"escalation_required"`
	SuggestedAlternative string             `json:"suggested_alternative,omitempty"`
}

// AuditEvent is one timestamped entry in a result's audit trail.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// ValidationResult is the outcome of validating one block of text.
// Stateless; not persisted by this subsystem.
type ValidationResult struct {
	Level                      SafetyLevel         `json:"level"`
	Findings                   []ValidationFinding `json:"findings"`
	Score                      float64             `json:"score"`
	CrisisDetected             bool                `json:"crisis_detected"`
	CrisisTypes                []CrisisType        `json:"crisis_types,omitempty"`
	Sentiment                  float64             `json:"sentiment"`
	TherapeuticAppropriateness float64             `json:"therapeutic_appropriateness"`
	EscalationRecommended      bool                `json:"escalation_recommended"`
	AlternativeContent         string              `json:"alternative_content,omitempty"`
	MonitoringFlags            []string            `json:"monitoring_flags,omitempty"`
	AuditTrail                 []AuditEvent        `json:"audit_trail,omitempty"`
	// CatalogHash is the content hash of the catalog version that produced
	// this result.
	CatalogHash string `json:"catalog_hash,omitempty"`
}

// CrisisAssessment is derived purely from a ValidationResult plus session
// context. Immutable.
type CrisisAssessment struct {
	Level                   CrisisLevel      `json:"crisis_level"`
	CrisisTypes             []CrisisType     `json:"crisis_types,omitempty"`
	Confidence              float64          `json:"confidence"`
	RiskFactors             []string         `json:"risk_factors,omitempty"`
	ProtectiveFactors       []string         `json:"protective_factors,omitempty"`
	ImmediateRisk           bool             `json:"immediate_risk"`
	RecommendedIntervention InterventionType `json:"recommended_intervention"`
	EscalationRequired      bool             `json:"escalation_required"`
	Timestamp               time.Time        `json:"timestamp"`
	SessionContext          map[string]any   `json:"session_context,omitempty"`
}

// InterventionAction is an append-only record of one step taken during an
// intervention.
type InterventionAction struct {
	Type           string         `json:"type"`
	Description    string         `json:"description"`
	Timestamp      time.Time      `json:"timestamp"`
	Success        bool           `json:"success"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// CrisisIntervention tracks one intervention from creation to resolution.
// Owned exclusively by the intervention manager while active.
type CrisisIntervention struct {
	ID                 string               `json:"id"`
	SessionID          string               `json:"session_id"`
	UserID             string               `json:"user_id"`
	Assessment         CrisisAssessment     `json:"crisis_assessment"`
	Actions            []InterventionAction `json:"actions"`
	EscalationStatus   EscalationStatus     `json:"escalation_status"`
	Resolution         string               `json:"resolution"`
	CreatedAt          time.Time            `json:"created_at"`
	ResolvedAt         *time.Time           `json:"resolved_at,omitempty"`
	ResolutionNotes    string               `json:"resolution_notes,omitempty"`
	HumanNotified      bool                 `json:"human_notified"`
	EmergencyContacted bool                 `json:"emergency_contacted"`
	FollowUpRequired   bool                 `json:"follow_up_required"`
}

// NotificationOutcome records one channel send attempt.
type NotificationOutcome struct {
	Channel    NotificationChannel `json:"channel"`
	MessageID  string              `json:"message_id,omitempty"`
	Status     string              `json:"delivery_status"`
	Error      string              `json:"error,omitempty"`
	SentAt     time.Time           `json:"sent_at"`
	DurationMs int64               `json:"duration_ms"`
}

// Delivery statuses for NotificationOutcome.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// EmergencyContact records one outbound emergency-services contact.
type EmergencyContact struct {
	Service         string    `json:"service"`
	Number          string    `json:"number"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	ContactedAt     time.Time `json:"contacted_at"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
}

// Escalation is the oversight subsystem's own record of a fan-out. It reads
// the intervention; it never mutates it.
type Escalation struct {
	ID              string                `json:"id"`
	InterventionID  string                `json:"intervention_id"`
	Type            string                `json:"escalation_type"`
	CrisisLevel     CrisisLevel           `json:"crisis_level"`
	CrisisTypes     []CrisisType          `json:"crisis_types,omitempty"`
	UserID          string                `json:"user_id"`
	SessionID       string                `json:"session_id"`
	Timestamp       time.Time             `json:"timestamp"`
	Notifications   []NotificationOutcome `json:"notifications"`
	EmergencyRecord *EmergencyContact     `json:"emergency_record,omitempty"`
	Status          EscalationState       `json:"status"`
	AssignedTo      string                `json:"assigned_to,omitempty"`
	AcknowledgedAt  *time.Time            `json:"acknowledged_at,omitempty"`
	ResponseNotes   string                `json:"response_notes,omitempty"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
	ResolutionNotes string                `json:"resolution_notes,omitempty"`
}
