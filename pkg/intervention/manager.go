package intervention

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/notify"
)

// Escalator hands interventions to human oversight or emergency services.
// Implemented by the escalation service; faked in tests.
type Escalator interface {
	EscalateToHuman(ctx context.Context, iv *contracts.CrisisIntervention, escalationType string) (*contracts.Escalation, error)
	EscalateToEmergencyServices(ctx context.Context, iv *contracts.CrisisIntervention, emergencyType string) (*contracts.Escalation, error)
}

// Manager owns the crisis-intervention lifecycle. Each intervention is
// created, mutated, and resolved by the single logical flow that initiated
// it; the manager itself is safe for concurrent independent invocations.
type Manager struct {
	store     Store
	escalator Escalator
	clock     func() time.Time
	logger    *slog.Logger

	initiated         atomic.Int64
	resolved          atomic.Int64
	escalationsFailed atomic.Int64
	emergencyContacts atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an intervention manager. Dependencies are explicit —
// there is no process-global instance.
func NewManager(store Store, escalator Escalator, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		escalator: escalator,
		clock:     time.Now,
		logger:    slog.Default().With("component", "intervention"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AssessCrisis derives a crisis assessment from a validation result.
func (m *Manager) AssessCrisis(result *contracts.ValidationResult, sessionCtx map[string]any) *contracts.CrisisAssessment {
	return Assess(result, sessionCtx, m.clock())
}

// InitiateIntervention opens an intervention: registers it as active,
// executes the immediate automated response, and — when the assessment
// requires it — escalates by crisis level. Escalation failures are caught,
// recorded on the intervention, and never propagate to the caller.
func (m *Manager) InitiateIntervention(ctx context.Context, assessment *contracts.CrisisAssessment, sessionID, userID string) (*contracts.CrisisIntervention, error) {
	now := m.clock()
	iv := &contracts.CrisisIntervention{
		ID:               uuid.New().String(),
		SessionID:        sessionID,
		UserID:           userID,
		Assessment:       *assessment,
		EscalationStatus: contracts.EscalationNone,
		Resolution:       contracts.ResolutionActive,
		CreatedAt:        now,
		FollowUpRequired: assessment.Level.Rank() >= contracts.CrisisModerate.Rank(),
	}
	if err := m.store.Put(ctx, iv); err != nil {
		return nil, fmt.Errorf("register intervention: %w", err)
	}
	m.initiated.Add(1)

	m.executeImmediateResponse(iv)

	if assessment.EscalationRequired {
		iv.EscalationStatus = contracts.EscalationPending
		m.escalate(ctx, iv)
	}

	if err := m.store.Put(ctx, iv); err != nil {
		// The intervention already happened; a stale index entry is an
		// operational concern, not a caller-facing failure.
		m.logger.Error("intervention index update failed", "intervention", iv.ID, "error", err)
	}
	return iv, nil
}

// executeImmediateResponse always runs and records its outcome as an
// action; it never fails the intervention.
func (m *Manager) executeImmediateResponse(iv *contracts.CrisisIntervention) {
	start := m.clock()
	text := responseFor(&iv.Assessment)
	iv.Actions = append(iv.Actions, contracts.InterventionAction{
		Type:           "automated_response",
		Description:    "immediate supportive response generated",
		Timestamp:      start,
		Success:        text != "",
		ResponseTimeMs: m.clock().Sub(start).Milliseconds(),
		Metadata:       map[string]any{"response": text, "crisis_level": iv.Assessment.Level},
	})
}

// escalate transitions Pending to Completed or Failed. Panics from the
// escalator are converted into a Failed status — a downstream notification
// problem must not abort the caller's request.
func (m *Manager) escalate(ctx context.Context, iv *contracts.CrisisIntervention) {
	start := m.clock()
	var esc *contracts.Escalation
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("escalation panic: %v", r)
			}
		}()
		if iv.Assessment.Level == contracts.CrisisCritical {
			esc, err = m.escalator.EscalateToEmergencyServices(ctx, iv, notify.EmergencyMentalHealth)
			iv.EmergencyContacted = esc != nil
			if iv.EmergencyContacted {
				m.emergencyContacts.Add(1)
			}
		} else {
			esc, err = m.escalator.EscalateToHuman(ctx, iv, contracts.EscalationTypeStandard)
		}
	}()

	action := contracts.InterventionAction{
		Type:           "escalation",
		Timestamp:      start,
		ResponseTimeMs: m.clock().Sub(start).Milliseconds(),
		Metadata:       map[string]any{"crisis_level": iv.Assessment.Level},
	}

	if err != nil {
		iv.EscalationStatus = contracts.EscalationFailed
		m.escalationsFailed.Add(1)
		action.Success = false
		action.Description = "escalation failed"
		action.Metadata["error"] = err.Error()
		m.logger.Error("escalation failed", "intervention", iv.ID, "error", err)
	} else {
		iv.EscalationStatus = contracts.EscalationCompleted
		action.Success = true
		action.Description = "escalated for oversight"
		if esc != nil {
			action.Metadata["escalation_id"] = esc.ID
			iv.HumanNotified = anyDelivered(esc)
		}
	}
	iv.Actions = append(iv.Actions, action)
}

// ResolveIntervention closes an intervention and moves it to history.
// Returns false without error when the id is unknown.
func (m *Manager) ResolveIntervention(ctx context.Context, id, notes string) (bool, error) {
	iv, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("lookup intervention %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}

	now := m.clock()
	iv.Resolution = contracts.ResolutionResolved
	iv.ResolvedAt = &now
	iv.ResolutionNotes = notes
	if err := m.store.Archive(ctx, iv); err != nil {
		return false, fmt.Errorf("archive intervention %s: %w", id, err)
	}
	m.resolved.Add(1)
	m.logger.Info("intervention resolved", "intervention", id)
	return true, nil
}

// GetInterventionStatus looks an intervention up in the active index, then
// history.
func (m *Manager) GetInterventionStatus(ctx context.Context, id string) (*contracts.CrisisIntervention, bool, error) {
	iv, ok, err := m.store.Get(ctx, id)
	if err != nil || ok {
		return iv, ok, err
	}
	return m.store.GetArchived(ctx, id)
}

// Metrics is a snapshot of intervention counters.
type Metrics struct {
	Initiated         int64 `json:"initiated"`
	Active            int   `json:"active"`
	Resolved          int64 `json:"resolved"`
	EscalationsFailed int64 `json:"escalations_failed"`
	EmergencyContacts int64 `json:"emergency_contacts"`
}

// Metrics returns the crisis metrics snapshot.
func (m *Manager) Metrics(ctx context.Context) (Metrics, error) {
	active, err := m.store.ActiveCount(ctx)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Initiated:         m.initiated.Load(),
		Active:            active,
		Resolved:          m.resolved.Load(),
		EscalationsFailed: m.escalationsFailed.Load(),
		EmergencyContacts: m.emergencyContacts.Load(),
	}, nil
}

func anyDelivered(esc *contracts.Escalation) bool {
	for _, o := range esc.Notifications {
		if o.Status == contracts.DeliveryDelivered {
			return true
		}
	}
	return false
}
