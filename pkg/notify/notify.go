// Package notify models the outbound notification channels (email, sms,
// phone, dashboard, pager) and the emergency-services contact. Transports
// are external collaborators injected as Provider funcs with a plain
// success/failure contract; this package owns timeouts, pacing, outcome
// records, and the hot-swappable channel registry.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// DefaultSendTimeout bounds a channel send when configuration does not set
// its own timeout. A slow channel must not stall the caller past this.
const DefaultSendTimeout = 10 * time.Second

// Notification is the rendered content handed to a channel.
type Notification struct {
	EscalationID   string                       `json:"escalation_id"`
	InterventionID string                       `json:"intervention_id"`
	Channel        contracts.NotificationChannel `json:"channel"`
	Subject        string                       `json:"subject"`
	Body           string                       `json:"body"`
	Recipients     []string                     `json:"recipients,omitempty"`
	CrisisLevel    contracts.CrisisLevel        `json:"crisis_level"`
	Metadata       map[string]any               `json:"metadata,omitempty"`
}

// Provider is the external transport contract for one channel: it either
// delivers and returns a message id, or fails.
type Provider func(ctx context.Context, n Notification) (messageID string, err error)

// Sender wraps a provider with recipients, a bounded timeout, and a pace
// limiter. Each send is independent; a failure is data, not control flow.
type Sender struct {
	channel    contracts.NotificationChannel
	provider   Provider
	recipients []string
	timeout    time.Duration
	limiter    *rate.Limiter
	clock      func() time.Time
}

// SenderConfig configures one channel sender.
type SenderConfig struct {
	Channel    contracts.NotificationChannel
	Provider   Provider
	Recipients []string
	Timeout    time.Duration
	// RatePerSecond caps outbound sends; zero means unlimited.
	RatePerSecond float64
}

// NewSender builds a sender. A nil provider falls back to a logging sink so
// a misconfigured channel degrades visibly instead of panicking.
func NewSender(cfg SenderConfig) *Sender {
	provider := cfg.Provider
	if provider == nil {
		provider = LogProvider(slog.Default())
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Sender{
		channel:    cfg.Channel,
		provider:   provider,
		recipients: cfg.Recipients,
		timeout:    timeout,
		limiter:    limiter,
		clock:      time.Now,
	}
}

// Channel returns the sender's channel tag.
func (s *Sender) Channel() contracts.NotificationChannel { return s.channel }

// Send attempts delivery and always returns an outcome record. Provider
// panics are contained here: a panicking transport yields a failed outcome
// for its own channel only.
func (s *Sender) Send(ctx context.Context, n Notification) contracts.NotificationOutcome {
	start := s.clock()
	outcome := contracts.NotificationOutcome{
		Channel: s.channel,
		SentAt:  start,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			outcome.Status = contracts.DeliveryFailed
			outcome.Error = fmt.Sprintf("rate limit wait: %v", err)
			outcome.DurationMs = s.clock().Sub(start).Milliseconds()
			return outcome
		}
	}

	n.Channel = s.channel
	if len(n.Recipients) == 0 {
		n.Recipients = s.recipients
	}

	msgID, err := s.deliver(ctx, n)
	outcome.DurationMs = s.clock().Sub(start).Milliseconds()
	if err != nil {
		outcome.Status = contracts.DeliveryFailed
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Status = contracts.DeliveryDelivered
	outcome.MessageID = msgID
	return outcome
}

type deliverResult struct {
	msgID string
	err   error
}

// deliver runs the provider on its own goroutine so the timeout holds even
// when a transport ignores its context. The result channel is buffered; an
// abandoned provider finishes into the buffer instead of leaking.
func (s *Sender) deliver(ctx context.Context, n Notification) (string, error) {
	done := make(chan deliverResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- deliverResult{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		id, err := s.provider(ctx, n)
		done <- deliverResult{msgID: id, err: err}
	}()

	select {
	case res := <-done:
		return res.msgID, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("send on %s: %w", s.channel, ctx.Err())
	}
}

// LogProvider returns a provider that records the notification to the
// structured log and reports success. It is the default dashboard sink and
// the fallback for unconfigured transports.
func LogProvider(logger *slog.Logger) Provider {
	return func(_ context.Context, n Notification) (string, error) {
		id := uuid.New().String()
		logger.Info("notification dispatched",
			"channel", n.Channel,
			"escalation", n.EscalationID,
			"intervention", n.InterventionID,
			"crisis_level", n.CrisisLevel,
			"message_id", id,
		)
		return id, nil
	}
}
