package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/model"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionSource is the part of the store the push channel needs.
type SubscriptionSource interface {
	SubscriptionsForMachine(ctx context.Context, machineID uint) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// PushChannel sends notices to browsers subscribed to the notice's machine.
type PushChannel struct {
	subs    SubscriptionSource
	sender  PushSender
	options *webpush.Options
}

func NewPushChannel(subs SubscriptionSource, options *webpush.Options) *PushChannel {
	return &PushChannel{
		subs:    subs,
		sender:  &WebPushSender{}, // Use the real sender by default
		options: options,
	}
}

func (p *PushChannel) Name() string { return "webpush" }

type pushPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Kind      Kind   `json:"kind"`
	MachineID uint   `json:"machineId"`
	AlertID   uint   `json:"alertId,omitempty"`
}

// Deliver fetches subscriptions and sends the notice to each of them.
func (p *PushChannel) Deliver(ctx context.Context, n Notice) error {
	subscriptions, err := p.subs.SubscriptionsForMachine(ctx, n.MachineID)
	if err != nil {
		return fmt.Errorf("fetch subscriptions for machine %d: %w", n.MachineID, err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title:     n.Subject(),
		Body:      n.Body(),
		Kind:      n.Kind,
		MachineID: n.MachineID,
		AlertID:   n.AlertID,
	})
	if err != nil {
		return err
	}

	logger := logging.GetLoggerFromContext(ctx)
	logger.Debug().
		Int("subscriptions", len(subscriptions)).Uint("machine_id", n.MachineID).
		Msg("sending push notifications")

	for _, sub := range subscriptions {
		p.send(ctx, sub, payload)
	}
	return nil
}

// send sends a single web push notification.
func (p *PushChannel) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	logger := logging.GetLoggerFromContext(ctx)
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		logger.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending push notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		logger.Info().Str("endpoint", sub.Endpoint).Msg("push subscription expired, deleting")
		if err := p.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
