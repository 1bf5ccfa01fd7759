package escalation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/escalation"
	"github.com/havenmind/sentinel/pkg/notify"
)

func intervention(level contracts.CrisisLevel) *contracts.CrisisIntervention {
	return &contracts.CrisisIntervention{
		ID:        "iv-1",
		SessionID: "sess-1",
		UserID:    "user-1",
		Assessment: contracts.CrisisAssessment{
			Level:       level,
			CrisisTypes: []contracts.CrisisType{contracts.CrisisSuicidalIdeation},
			Confidence:  0.9,
		},
	}
}

func okProvider(ch contracts.NotificationChannel) *notify.Sender {
	return notify.NewSender(notify.SenderConfig{
		Channel: ch,
		Provider: func(context.Context, notify.Notification) (string, error) {
			return "msg-" + string(ch), nil
		},
	})
}

func failProvider(ch contracts.NotificationChannel) *notify.Sender {
	return notify.NewSender(notify.SenderConfig{
		Channel: ch,
		Provider: func(context.Context, notify.Notification) (string, error) {
			return "", errors.New("gateway unavailable")
		},
	})
}

type stubContactor struct {
	err    error
	called int
	last   notify.ServiceCall
}

func (c *stubContactor) Contact(_ context.Context, call notify.ServiceCall) (contracts.EmergencyContact, error) {
	c.called++
	c.last = call
	if c.err != nil {
		return contracts.EmergencyContact{}, c.err
	}
	return contracts.EmergencyContact{
		Service:         call.Service,
		Number:          call.Number,
		ReferenceNumber: "REF-test",
		ContactedAt:     time.Now(),
		Status:          "contacted",
	}, nil
}

func TestChannelsForLevel(t *testing.T) {
	assert.Len(t, escalation.ChannelsForLevel(contracts.CrisisCritical), 5)
	assert.Len(t, escalation.ChannelsForLevel(contracts.CrisisHigh), 3)
	assert.Len(t, escalation.ChannelsForLevel(contracts.CrisisModerate), 2)
	assert.Equal(t,
		[]contracts.NotificationChannel{contracts.ChannelDashboard},
		escalation.ChannelsForLevel(contracts.CrisisLow))
}

func TestEscalateToHuman_FansOutToLevelChannels(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Set(contracts.ChannelSMS, okProvider(contracts.ChannelSMS))
	reg.Set(contracts.ChannelEmail, okProvider(contracts.ChannelEmail))
	reg.Set(contracts.ChannelDashboard, okProvider(contracts.ChannelDashboard))
	svc := escalation.NewService(reg, &stubContactor{}, nil)

	esc, err := svc.EscalateToHuman(context.Background(), intervention(contracts.CrisisHigh), "")
	require.NoError(t, err)

	assert.Equal(t, contracts.EscalationStatePending, esc.Status)
	assert.Equal(t, contracts.EscalationTypeStandard, esc.Type)
	require.Len(t, esc.Notifications, 3)
	for _, o := range esc.Notifications {
		assert.Equal(t, contracts.DeliveryDelivered, o.Status)
	}
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestEscalateToHuman_ChannelFailureIsolated(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Set(contracts.ChannelSMS, failProvider(contracts.ChannelSMS))
	reg.Set(contracts.ChannelEmail, okProvider(contracts.ChannelEmail))
	reg.Set(contracts.ChannelDashboard, okProvider(contracts.ChannelDashboard))
	svc := escalation.NewService(reg, &stubContactor{}, nil)

	esc, err := svc.EscalateToHuman(context.Background(), intervention(contracts.CrisisHigh), "")
	require.NoError(t, err)

	statuses := map[contracts.NotificationChannel]string{}
	for _, o := range esc.Notifications {
		statuses[o.Channel] = o.Status
	}
	assert.Equal(t, contracts.DeliveryFailed, statuses[contracts.ChannelSMS])
	assert.Equal(t, contracts.DeliveryDelivered, statuses[contracts.ChannelEmail])
	assert.Equal(t, contracts.DeliveryDelivered, statuses[contracts.ChannelDashboard])
	assert.Equal(t, int64(1), svc.FailedSends())
}

func TestEscalateToHuman_SendFailureHookFiresPerFailedChannel(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Set(contracts.ChannelSMS, failProvider(contracts.ChannelSMS))
	reg.Set(contracts.ChannelEmail, okProvider(contracts.ChannelEmail))
	reg.Set(contracts.ChannelDashboard, failProvider(contracts.ChannelDashboard))

	var mu sync.Mutex
	var failed []contracts.NotificationChannel
	svc := escalation.NewService(reg, &stubContactor{}, nil,
		escalation.WithSendFailureHook(func(ch contracts.NotificationChannel) {
			mu.Lock()
			failed = append(failed, ch)
			mu.Unlock()
		}),
	)

	_, err := svc.EscalateToHuman(context.Background(), intervention(contracts.CrisisHigh), "")
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]contracts.NotificationChannel{contracts.ChannelSMS, contracts.ChannelDashboard},
		failed)
	assert.Equal(t, int64(2), svc.FailedSends())
}

func TestEscalateToHuman_NoChannelsStillPending(t *testing.T) {
	svc := escalation.NewService(notify.NewRegistry(), &stubContactor{}, nil)

	esc, err := svc.EscalateToHuman(context.Background(), intervention(contracts.CrisisModerate), "")
	require.NoError(t, err)
	assert.Empty(t, esc.Notifications)
	assert.Equal(t, contracts.EscalationStatePending, esc.Status)
}

func TestEscalateToEmergencyServices_ContactsService(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Set(contracts.ChannelDashboard, okProvider(contracts.ChannelDashboard))
	contactor := &stubContactor{}
	svc := escalation.NewService(reg, contactor, nil)

	esc, err := svc.EscalateToEmergencyServices(context.Background(), intervention(contracts.CrisisCritical), notify.EmergencyMentalHealth)
	require.NoError(t, err)

	assert.Equal(t, 1, contactor.called)
	assert.Equal(t, "988", contactor.last.Number)
	assert.Equal(t, "sess-1", contactor.last.SessionID)
	require.NotNil(t, esc.EmergencyRecord)
	assert.Equal(t, "contacted", esc.EmergencyRecord.Status)
	assert.Equal(t, contracts.EscalationStateCritical, esc.Status)
	assert.Equal(t, contracts.EscalationTypeEmergencyServices, esc.Type)
}

func TestEscalateToEmergencyServices_FallbackDashboardWhenNoChannels(t *testing.T) {
	svc := escalation.NewService(notify.NewRegistry(), &stubContactor{}, nil)

	esc, err := svc.EscalateToEmergencyServices(context.Background(), intervention(contracts.CrisisCritical), notify.EmergencyMentalHealth)
	require.NoError(t, err)

	// Never silent: the fallback dashboard sink records the attempt.
	require.Len(t, esc.Notifications, 1)
	assert.Equal(t, contracts.ChannelDashboard, esc.Notifications[0].Channel)
	assert.Equal(t, contracts.DeliveryDelivered, esc.Notifications[0].Status)
}

func TestEscalateToEmergencyServices_ContactFailureAloneIsNotFatal(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Set(contracts.ChannelDashboard, okProvider(contracts.ChannelDashboard))
	svc := escalation.NewService(reg, &stubContactor{err: errors.New("line busy")}, nil)

	esc, err := svc.EscalateToEmergencyServices(context.Background(), intervention(contracts.CrisisCritical), notify.EmergencyMedical)
	require.NoError(t, err)

	require.NotNil(t, esc.EmergencyRecord)
	assert.Equal(t, "failed", esc.EmergencyRecord.Status)
	assert.Contains(t, esc.EmergencyRecord.Error, "line busy")
}

func TestEscalateToEmergencyServices_UnreachableWhenEverythingFails(t *testing.T) {
	reg := notify.NewRegistry()
	for _, ch := range escalation.ChannelsForLevel(contracts.CrisisCritical) {
		reg.Set(ch, failProvider(ch))
	}
	svc := escalation.NewService(reg, &stubContactor{err: errors.New("line busy")}, nil)

	esc, err := svc.EscalateToEmergencyServices(context.Background(), intervention(contracts.CrisisCritical), notify.EmergencyMentalHealth)
	require.ErrorIs(t, err, escalation.ErrEmergencyUnreachable)
	// The escalation record is still produced and stored for later review.
	require.NotNil(t, esc)
	got, ok := svc.Get(esc.ID)
	require.True(t, ok)
	assert.Equal(t, contracts.EscalationStateCritical, got.Status)
}

func TestAcknowledgeAndResolveLifecycle(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Set(contracts.ChannelDashboard, okProvider(contracts.ChannelDashboard))
	svc := escalation.NewService(reg, &stubContactor{}, nil)

	esc, err := svc.EscalateToHuman(context.Background(), intervention(contracts.CrisisModerate), "")
	require.NoError(t, err)

	require.NoError(t, svc.Acknowledge(esc.ID, "clinician-7", "reviewing transcript"))
	got, ok := svc.Get(esc.ID)
	require.True(t, ok)
	assert.Equal(t, contracts.EscalationStateAcknowledged, got.Status)
	assert.Equal(t, "clinician-7", got.AssignedTo)
	require.NotNil(t, got.AcknowledgedAt)

	require.NoError(t, svc.Resolve(esc.ID, "user connected with counselor"))
	assert.Equal(t, 0, svc.ActiveCount())

	// Resolved escalations remain retrievable from history.
	got, ok = svc.Get(esc.ID)
	require.True(t, ok)
	assert.Equal(t, contracts.EscalationStateResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, "user connected with counselor", got.ResolutionNotes)

	assert.Error(t, svc.Acknowledge(esc.ID, "clinician-8", ""))
	assert.Error(t, svc.Resolve(esc.ID, ""))
}

func TestAcknowledge_UnknownEscalation(t *testing.T) {
	svc := escalation.NewService(notify.NewRegistry(), &stubContactor{}, nil)
	assert.Error(t, svc.Acknowledge("nope", "clinician-1", ""))
	assert.Error(t, svc.Resolve("nope", ""))
}
