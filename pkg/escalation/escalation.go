// Package escalation fans crisis interventions out to human oversight and
// emergency services, and tracks the acknowledgement/resolution lifecycle
// of each escalation record.
//
// Channel sends are independent: one channel failing never stops the
// others, and no notification failure propagates to the validation caller.
// The single caller-visible failure is an emergency escalation that could
// not reach anything at all.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/notify"
)

// ErrEmergencyUnreachable reports that an emergency escalation failed on
// every channel and the services contact itself. This is the non-negotiable
// failure surfaced to the caller.
var ErrEmergencyUnreachable = errors.New("emergency escalation unreachable on all channels")

// Service is the human-oversight escalation manager.
type Service struct {
	registry  *notify.Registry
	contactor notify.EmergencyContactor
	directory notify.ServiceDirectory
	clock     func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	active  map[string]*contracts.Escalation
	history map[string]*contracts.Escalation

	failedSends   atomic.Int64
	onSendFailure func(contracts.NotificationChannel)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSendFailureHook registers a callback invoked once per failed channel
// send, in addition to the internal counter.
func WithSendFailureHook(fn func(contracts.NotificationChannel)) Option {
	return func(s *Service) { s.onSendFailure = fn }
}

// NewService creates an escalation service over the given channel registry
// and emergency contactor. A nil directory uses the built-in 988/911 map.
func NewService(registry *notify.Registry, contactor notify.EmergencyContactor, directory notify.ServiceDirectory, opts ...Option) *Service {
	if directory == nil {
		directory = notify.DefaultServiceDirectory()
	}
	s := &Service{
		registry:  registry,
		contactor: contactor,
		directory: directory,
		clock:     time.Now,
		logger:    slog.Default().With("component", "escalation"),
		active:    make(map[string]*contracts.Escalation),
		history:   make(map[string]*contracts.Escalation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChannelsForLevel selects notification channels by crisis level, widest
// for critical.
func ChannelsForLevel(level contracts.CrisisLevel) []contracts.NotificationChannel {
	switch level {
	case contracts.CrisisCritical:
		return []contracts.NotificationChannel{
			contracts.ChannelSMS, contracts.ChannelPhone, contracts.ChannelEmail,
			contracts.ChannelDashboard, contracts.ChannelPager,
		}
	case contracts.CrisisHigh:
		return []contracts.NotificationChannel{
			contracts.ChannelSMS, contracts.ChannelEmail, contracts.ChannelDashboard,
		}
	case contracts.CrisisModerate:
		return []contracts.NotificationChannel{
			contracts.ChannelEmail, contracts.ChannelDashboard,
		}
	default:
		return []contracts.NotificationChannel{contracts.ChannelDashboard}
	}
}

// EscalateToHuman fans an intervention out to the enabled channels for its
// crisis level and registers a pending escalation. It never fails on
// channel errors; failures are recorded per channel and counted.
func (s *Service) EscalateToHuman(ctx context.Context, iv *contracts.CrisisIntervention, escalationType string) (*contracts.Escalation, error) {
	if escalationType == "" {
		escalationType = contracts.EscalationTypeStandard
	}

	esc := s.newEscalation(iv, escalationType)
	senders := s.registry.Enabled(ChannelsForLevel(iv.Assessment.Level))
	esc.Notifications = s.fanOut(ctx, senders, esc, iv)
	esc.Status = contracts.EscalationStatePending

	s.store(esc)
	s.logger.Info("escalated to human oversight",
		"escalation", esc.ID,
		"intervention", iv.ID,
		"crisis_level", esc.CrisisLevel,
		"channels", len(esc.Notifications),
	)
	return esc, nil
}

// EscalateToEmergencyServices contacts the mapped emergency service and
// notifies the full critical channel set. The notification list is never
// empty for an emergency escalation: when no channel is configured, the
// fallback dashboard sink records the attempt.
func (s *Service) EscalateToEmergencyServices(ctx context.Context, iv *contracts.CrisisIntervention, emergencyType string) (*contracts.Escalation, error) {
	esc := s.newEscalation(iv, contracts.EscalationTypeEmergencyServices)

	entry := s.directory.Resolve(emergencyType)
	record, err := s.contactor.Contact(ctx, notify.ServiceCall{
		Service:   entry.Service,
		Number:    entry.Number,
		Reason:    fmt.Sprintf("crisis intervention %s: %s", iv.ID, joinCrisisTypes(iv.Assessment.CrisisTypes)),
		UserID:    iv.UserID,
		SessionID: iv.SessionID,
		Location:  contracts.CtxString(iv.Assessment.SessionContext, contracts.CtxLocation),
	})
	if err != nil {
		record = contracts.EmergencyContact{
			Service:     entry.Service,
			Number:      entry.Number,
			ContactedAt: s.clock(),
			Status:      "failed",
			Error:       err.Error(),
		}
	}
	esc.EmergencyRecord = &record

	senders := s.registry.Enabled(ChannelsForLevel(contracts.CrisisCritical))
	if len(senders) == 0 {
		senders = []*notify.Sender{notify.NewSender(notify.SenderConfig{
			Channel:  contracts.ChannelDashboard,
			Provider: notify.LogProvider(s.logger),
		})}
	}
	esc.Notifications = s.fanOut(ctx, senders, esc, iv)
	esc.Status = contracts.EscalationStateCritical
	s.store(esc)

	if record.Status == "failed" && deliveredCount(esc.Notifications) == 0 {
		return esc, ErrEmergencyUnreachable
	}
	return esc, nil
}

// Acknowledge assigns a human to a pending or critical escalation.
func (s *Service) Acknowledge(id, humanID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, ok := s.active[id]
	if !ok {
		return fmt.Errorf("escalation %q not found", id)
	}
	if esc.Status == contracts.EscalationStateResolved {
		return fmt.Errorf("escalation %q already resolved", id)
	}

	now := s.clock()
	esc.Status = contracts.EscalationStateAcknowledged
	esc.AssignedTo = humanID
	esc.AcknowledgedAt = &now
	esc.ResponseNotes = notes
	return nil
}

// Resolve closes an escalation and moves it from the active index to
// history.
func (s *Service) Resolve(id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, ok := s.active[id]
	if !ok {
		return fmt.Errorf("escalation %q not found", id)
	}

	now := s.clock()
	esc.Status = contracts.EscalationStateResolved
	esc.ResolvedAt = &now
	esc.ResolutionNotes = notes
	delete(s.active, id)
	s.history[id] = esc
	return nil
}

// Get looks up an escalation in the active index, then history.
func (s *Service) Get(id string) (*contracts.Escalation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if esc, ok := s.active[id]; ok {
		return esc, true
	}
	esc, ok := s.history[id]
	return esc, ok
}

// ActiveCount returns the number of unresolved escalations.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// FailedSends returns the process-lifetime count of failed channel sends.
func (s *Service) FailedSends() int64 { return s.failedSends.Load() }

// store registers an escalation in the active index.
func (s *Service) store(esc *contracts.Escalation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[esc.ID] = esc
}

func (s *Service) newEscalation(iv *contracts.CrisisIntervention, escalationType string) *contracts.Escalation {
	return &contracts.Escalation{
		ID:             uuid.New().String(),
		InterventionID: iv.ID,
		Type:           escalationType,
		CrisisLevel:    iv.Assessment.Level,
		CrisisTypes:    iv.Assessment.CrisisTypes,
		UserID:         iv.UserID,
		SessionID:      iv.SessionID,
		Timestamp:      s.clock(),
	}
}

// fanOut attempts every sender independently. No fail-fast across channels.
func (s *Service) fanOut(ctx context.Context, senders []*notify.Sender, esc *contracts.Escalation, iv *contracts.CrisisIntervention) []contracts.NotificationOutcome {
	outcomes := make([]contracts.NotificationOutcome, 0, len(senders))
	body := renderBody(iv)
	for _, sender := range senders {
		outcome := sender.Send(ctx, notify.Notification{
			EscalationID:   esc.ID,
			InterventionID: iv.ID,
			Subject:        fmt.Sprintf("[%s] crisis escalation %s", strings.ToUpper(string(esc.CrisisLevel)), esc.ID),
			Body:           body,
			CrisisLevel:    esc.CrisisLevel,
		})
		if outcome.Status == contracts.DeliveryFailed {
			s.failedSends.Add(1)
			if s.onSendFailure != nil {
				s.onSendFailure(outcome.Channel)
			}
			s.logger.Warn("notification channel failed",
				"escalation", esc.ID,
				"channel", outcome.Channel,
				"error", outcome.Error,
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func renderBody(iv *contracts.CrisisIntervention) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crisis intervention %s requires oversight.\n", iv.ID)
	fmt.Fprintf(&b, "Session: %s  User: %s\n", iv.SessionID, iv.UserID)
	fmt.Fprintf(&b, "Level: %s  Confidence: %.2f  Immediate risk: %t\n",
		iv.Assessment.Level, iv.Assessment.Confidence, iv.Assessment.ImmediateRisk)
	if len(iv.Assessment.CrisisTypes) > 0 {
		fmt.Fprintf(&b, "Crisis types: %s\n", joinCrisisTypes(iv.Assessment.CrisisTypes))
	}
	if len(iv.Assessment.RiskFactors) > 0 {
		fmt.Fprintf(&b, "Risk factors: %s\n", strings.Join(iv.Assessment.RiskFactors, ", "))
	}
	return b.String()
}

func joinCrisisTypes(types []contracts.CrisisType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func deliveredCount(outcomes []contracts.NotificationOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == contracts.DeliveryDelivered {
			n++
		}
	}
	return n
}
