package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/notify"
)

func TestSender_Send_Delivered(t *testing.T) {
	var got notify.Notification
	s := notify.NewSender(notify.SenderConfig{
		Channel:    contracts.ChannelSMS,
		Recipients: []string{"+15550100"},
		Provider: func(_ context.Context, n notify.Notification) (string, error) {
			got = n
			return "msg-1", nil
		},
	})

	outcome := s.Send(context.Background(), notify.Notification{Subject: "alert", Body: "check in"})

	assert.Equal(t, contracts.DeliveryDelivered, outcome.Status)
	assert.Equal(t, "msg-1", outcome.MessageID)
	assert.Empty(t, outcome.Error)
	assert.Equal(t, contracts.ChannelSMS, outcome.Channel)
	// Sender defaults flow into the notification.
	assert.Equal(t, contracts.ChannelSMS, got.Channel)
	assert.Equal(t, []string{"+15550100"}, got.Recipients)
}

func TestSender_Send_ProviderError(t *testing.T) {
	s := notify.NewSender(notify.SenderConfig{
		Channel: contracts.ChannelEmail,
		Provider: func(context.Context, notify.Notification) (string, error) {
			return "", errors.New("smtp down")
		},
	})

	outcome := s.Send(context.Background(), notify.Notification{})
	assert.Equal(t, contracts.DeliveryFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "smtp down")
}

func TestSender_Send_ProviderPanicContained(t *testing.T) {
	s := notify.NewSender(notify.SenderConfig{
		Channel: contracts.ChannelPager,
		Provider: func(context.Context, notify.Notification) (string, error) {
			panic("pager gateway exploded")
		},
	})

	outcome := s.Send(context.Background(), notify.Notification{})
	assert.Equal(t, contracts.DeliveryFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "provider panic")
}

func TestSender_Send_TimeoutPropagates(t *testing.T) {
	s := notify.NewSender(notify.SenderConfig{
		Channel: contracts.ChannelPhone,
		Timeout: 10 * time.Millisecond,
		Provider: func(ctx context.Context, _ notify.Notification) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})

	outcome := s.Send(context.Background(), notify.Notification{})
	assert.Equal(t, contracts.DeliveryFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "deadline")
}

func TestSender_Send_TimeoutHoldsWhenProviderIgnoresContext(t *testing.T) {
	s := notify.NewSender(notify.SenderConfig{
		Channel: contracts.ChannelSMS,
		Timeout: 10 * time.Millisecond,
		Provider: func(_ context.Context, _ notify.Notification) (string, error) {
			time.Sleep(500 * time.Millisecond)
			return "late", nil
		},
	})

	start := time.Now()
	outcome := s.Send(context.Background(), notify.Notification{})
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, contracts.DeliveryFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "deadline")
	assert.Empty(t, outcome.MessageID)
}

func TestSender_NilProviderFallsBackToLog(t *testing.T) {
	s := notify.NewSender(notify.SenderConfig{Channel: contracts.ChannelDashboard})

	outcome := s.Send(context.Background(), notify.Notification{Subject: "alert"})
	assert.Equal(t, contracts.DeliveryDelivered, outcome.Status)
	assert.NotEmpty(t, outcome.MessageID)
}

func TestSender_RateLimiterPacesSends(t *testing.T) {
	s := notify.NewSender(notify.SenderConfig{
		Channel:       contracts.ChannelSMS,
		RatePerSecond: 100,
		Provider: func(context.Context, notify.Notification) (string, error) {
			return "ok", nil
		},
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		outcome := s.Send(context.Background(), notify.Notification{})
		require.Equal(t, contracts.DeliveryDelivered, outcome.Status)
	}
	// Burst 1 at 100/s: the two follow-up sends wait roughly 10ms each.
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestRegistry_SetGetRemove(t *testing.T) {
	r := notify.NewRegistry()
	s := notify.NewSender(notify.SenderConfig{Channel: contracts.ChannelEmail})

	_, ok := r.Get(contracts.ChannelEmail)
	assert.False(t, ok)

	r.Set(contracts.ChannelEmail, s)
	got, ok := r.Get(contracts.ChannelEmail)
	require.True(t, ok)
	assert.Equal(t, contracts.ChannelEmail, got.Channel())

	r.Remove(contracts.ChannelEmail)
	_, ok = r.Get(contracts.ChannelEmail)
	assert.False(t, ok)
}

func TestRegistry_Enabled_FiltersUnconfigured(t *testing.T) {
	r := notify.NewRegistry()
	r.Set(contracts.ChannelEmail, notify.NewSender(notify.SenderConfig{Channel: contracts.ChannelEmail}))
	r.Set(contracts.ChannelDashboard, notify.NewSender(notify.SenderConfig{Channel: contracts.ChannelDashboard}))

	senders := r.Enabled([]contracts.NotificationChannel{
		contracts.ChannelSMS, contracts.ChannelEmail, contracts.ChannelDashboard,
	})
	require.Len(t, senders, 2)
}

func TestServiceDirectory_Resolve(t *testing.T) {
	d := notify.DefaultServiceDirectory()

	entry := d.Resolve(notify.EmergencyMentalHealth)
	assert.Equal(t, "988", entry.Number)

	entry = d.Resolve("unknown-type")
	assert.Equal(t, "911", entry.Number)
}

func TestLoggingContactor_ReturnsReference(t *testing.T) {
	c := &notify.LoggingContactor{}
	record, err := c.Contact(context.Background(), notify.ServiceCall{
		Service: "988 Suicide & Crisis Lifeline",
		Number:  "988",
		Reason:  "test",
	})
	require.NoError(t, err)
	assert.Equal(t, "contacted", record.Status)
	assert.NotEmpty(t, record.ReferenceNumber)
	assert.False(t, record.ContactedAt.IsZero())
}
