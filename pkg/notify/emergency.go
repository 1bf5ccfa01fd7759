package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// Emergency-service types selectable by escalation.
const (
	EmergencyMentalHealth = "mental_health"
	EmergencyMedical      = "medical"
	EmergencyGeneral      = "general"
)

// ServiceCall describes one outbound emergency-services contact request.
type ServiceCall struct {
	Service   string `json:"service"`
	Number    string `json:"number"`
	Reason    string `json:"reason"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Location  string `json:"location,omitempty"`
}

// EmergencyContactor is the logical interface to emergency services. The
// transport (phone/SMS gateway) is an external collaborator behind it.
type EmergencyContactor interface {
	Contact(ctx context.Context, call ServiceCall) (contracts.EmergencyContact, error)
}

// ServiceDirectory maps emergency types to service name and number. The
// defaults follow the US routing: mental health crises to the 988 lifeline,
// medical and general emergencies to 911.
type ServiceDirectory map[string]contracts.EmergencyContact

// DefaultServiceDirectory returns the built-in number mapping.
func DefaultServiceDirectory() ServiceDirectory {
	return ServiceDirectory{
		EmergencyMentalHealth: {Service: "988 Suicide & Crisis Lifeline", Number: "988"},
		EmergencyMedical:      {Service: "Emergency Medical Services", Number: "911"},
		EmergencyGeneral:      {Service: "Emergency Services", Number: "911"},
	}
}

// Resolve returns the service entry for an emergency type, falling back to
// the general service for unknown types.
func (d ServiceDirectory) Resolve(emergencyType string) contracts.EmergencyContact {
	if entry, ok := d[emergencyType]; ok {
		return entry
	}
	if entry, ok := d[EmergencyGeneral]; ok {
		return entry
	}
	return contracts.EmergencyContact{Service: "Emergency Services", Number: "911"}
}

// LoggingContactor is the default contactor: it records the call to the
// structured log and reports success with a reference number. Production
// deployments replace it with a gateway-backed implementation.
type LoggingContactor struct {
	Logger *slog.Logger
	Clock  func() time.Time
}

// Contact records the outbound call and returns its acknowledgement.
func (c *LoggingContactor) Contact(_ context.Context, call ServiceCall) (contracts.EmergencyContact, error) {
	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ref := fmt.Sprintf("REF-%s", uuid.New().String()[:8])
	logger.Warn("emergency services contacted",
		"service", call.Service,
		"number", call.Number,
		"reason", call.Reason,
		"session", call.SessionID,
		"reference", ref,
	)
	return contracts.EmergencyContact{
		Service:         call.Service,
		Number:          call.Number,
		ReferenceNumber: ref,
		ContactedAt:     clock(),
		Status:          "contacted",
	}, nil
}
