package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/placementalarm/placement-api/config"
)

// ErrSubscriptionGone means the browser dropped the subscription. The
// caller should clear it so dead endpoints stop being retried.
var ErrSubscriptionGone = errors.New("push subscription gone")

type Sender interface {
	Send(ctx context.Context, subscription json.RawMessage, payload interface{}) error
}

type webpushSender struct {
	cfg config.PushConfig
}

func NewWebpushSender(cfg config.PushConfig) Sender {
	return &webpushSender{cfg: cfg}
}

func (s *webpushSender) Send(ctx context.Context, subscription json.RawMessage, payload interface{}) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil {
		return fmt.Errorf("failed to parse push subscription: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &sub, &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             3600,
	})
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return ErrSubscriptionGone
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
