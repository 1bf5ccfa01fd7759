package protocol

import "fmt"

// DefaultProtocols returns the built-in protocol catalog. Keys follow the
// "<crisis_type>:<crisis_level>" convention with per-type and global
// fallbacks.
func DefaultProtocols() map[string][]Step {
	return map[string][]Step{
		"suicidal_ideation:critical": {
			{
				Name:     "immediate-response",
				Type:     StepGenerateResponse,
				Critical: true,
				Params: map[string]any{
					"template": "I'm very concerned about your safety right now. " +
						"Please call or text 988 immediately, or call 911 if you are in danger.",
				},
			},
			{
				Name:     "emergency-contact",
				Type:     StepContactEmergency,
				Critical: true,
				Params:   map[string]any{"service": "mental_health_crisis"},
			},
			{
				Name:   "human-alert",
				Type:   StepNotifyHuman,
				Params: map[string]any{"message": "Critical suicidal ideation detected for session {session_id}"},
			},
			{
				Name:   "crisis-resources",
				Type:   StepProvideResources,
				Params: map[string]any{},
			},
			{
				Name:   "record",
				Type:   StepLogEvent,
				Params: map[string]any{"event": "critical_protocol_executed", "severity": "critical"},
			},
		},
		"suicidal_ideation:high": {
			{
				Name:     "supportive-response",
				Type:     StepGenerateResponse,
				Critical: true,
				Params: map[string]any{
					"template": "Thank you for telling me. You don't have to face this alone. " +
						"The 988 Suicide & Crisis Lifeline is available right now by call or text.",
				},
			},
			{
				Name:   "human-alert",
				Type:   StepNotifyHuman,
				Params: map[string]any{"message": "High-severity suicidal ideation detected for session {session_id}"},
			},
			{Name: "crisis-resources", Type: StepProvideResources},
			{
				Name:   "followup",
				Type:   StepScheduleFollowup,
				Params: map[string]any{"delay_hours": 4},
			},
		},
		"self_harm:default": {
			{
				Name:     "grounding-response",
				Type:     StepGenerateResponse,
				Critical: true,
				Params: map[string]any{
					"template": "I hear that you're in a lot of pain. Let's try a grounding exercise together, " +
						"and please consider reaching out to the Crisis Text Line by texting HOME to 741741.",
				},
			},
			{
				Name:   "human-alert",
				Type:   StepNotifyHuman,
				Params: map[string]any{"message": "Self-harm indicators detected for session {session_id}"},
			},
			{Name: "crisis-resources", Type: StepProvideResources},
			{
				Name:   "followup",
				Type:   StepScheduleFollowup,
				Params: map[string]any{"delay_hours": 12},
			},
		},
		"severe_depression:default": {
			{
				Name: "supportive-response",
				Type: StepGenerateResponse,
				Params: map[string]any{
					"template": "What you're feeling sounds incredibly heavy. " +
						"Support is available, and talking to a professional can genuinely help.",
				},
			},
			{Name: "crisis-resources", Type: StepProvideResources},
			{
				Name:   "followup",
				Type:   StepScheduleFollowup,
				Params: map[string]any{"delay_hours": 24},
			},
			{
				Name:   "record",
				Type:   StepLogEvent,
				Params: map[string]any{"event": "depression_protocol_executed", "severity": "warning"},
			},
		},
		"default": {
			{
				Name: "generic-response",
				Type: StepGenerateResponse,
				Params: map[string]any{
					"template": "I want to make sure you're safe. Support resources are available if you need them.",
				},
			},
			{Name: "crisis-resources", Type: StepProvideResources},
			{
				Name:   "record",
				Type:   StepLogEvent,
				Params: map[string]any{"event": "default_protocol_executed", "severity": "info"},
			},
		},
	}
}

// Key builds a protocol map key for a type and level.
func Key(crisisType, level string) string {
	return fmt.Sprintf("%s:%s", crisisType, level)
}
