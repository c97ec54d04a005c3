package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/epicure/pkg/event"
)

// OTPDispatcher delivers codes published on the OTP topic through a Sender.
type OTPDispatcher struct {
	subscriber events.Subscriber
	sender     Sender
	ttl        time.Duration
	logger     apt.Logger
	now        func() time.Time
}

func NewOTPDispatcher(sub events.Subscriber, sender Sender, ttl time.Duration, logger apt.Logger) *OTPDispatcher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &OTPDispatcher{
		subscriber: sub,
		sender:     sender,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

func (d *OTPDispatcher) Start(ctx context.Context) error {
	if d.subscriber == nil {
		return fmt.Errorf("otp dispatcher subscriber not configured")
	}
	if d.sender == nil {
		return fmt.Errorf("otp dispatcher sender not configured")
	}
	d.logger.Info("starting otp dispatcher", "topic", event.OTPTopic)
	return d.subscriber.Subscribe(ctx, event.OTPTopic, d.handleEvent)
}

func (d *OTPDispatcher) Stop(ctx context.Context) error {
	return nil
}

func (d *OTPDispatcher) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OTPRequestedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		d.logger.Info("invalid otp event", "error", err)
		return nil
	}
	if evt.EventType != event.EventOTPRequested {
		return nil
	}
	if !evt.ExpiresAt.IsZero() && !d.now().Before(evt.ExpiresAt) {
		d.logger.Info("dropping expired otp event", "mobile", evt.Mobile)
		return nil
	}

	if err := d.sender.Send(ctx, evt.Mobile, OTPMessage(evt.Code, d.ttl)); err != nil {
		return fmt.Errorf("deliver otp to %s: %w", evt.Mobile, err)
	}
	return nil
}
