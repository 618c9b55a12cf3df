package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"shopfloor-ops-backend/internal/model"
)

// mockSender is a mock implementation of the PushSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	byID    map[uint][]model.PushSubscription
	deleted []string
	err     error
}

func (f *fakeSubscriptions) SubscriptionsForMachine(_ context.Context, machineID uint) ([]model.PushSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[machineID], nil
}

func (f *fakeSubscriptions) DeleteSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

type recordingChannel struct {
	name string
	got  chan Notice
	err  error
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) Deliver(_ context.Context, n Notice) error {
	r.got <- n
	return r.err
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 1)

	assert.True(t, wp.Dispatch(Notice{Kind: KindCriticalAlert, MachineID: 123}))
	// queue is full and nobody is consuming
	assert.False(t, wp.Dispatch(Notice{Kind: KindCriticalAlert, MachineID: 124}))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, uint(123), job.MachineID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_FansOutToEveryChannel(t *testing.T) {
	failing := &recordingChannel{name: "failing", got: make(chan Notice, 1), err: errors.New("smtp down")}
	ok := &recordingChannel{name: "ok", got: make(chan Notice, 1)}
	wp := NewWorkerPool(2, 4, failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(Notice{Kind: KindMaintenanceDue, MachineID: 9})

	for _, ch := range []*recordingChannel{failing, ok} {
		select {
		case n := <-ch.got:
			assert.Equal(t, uint(9), n.MachineID)
		case <-time.After(time.Second):
			t.Fatalf("channel %s never received the notice", ch.name)
		}
	}
}

func TestPushChannel_Deliver(t *testing.T) {
	notice := Notice{Kind: KindCriticalAlert, MachineID: 101, MachineName: "Laser Cutter A", Location: "Hall A", AlertID: 5, Title: "Spindle overheating"}

	t.Run("sends notification for one subscription", func(t *testing.T) {
		subs := &fakeSubscriptions{byID: map[uint][]model.PushSubscription{
			101: {{Endpoint: "https://example.com/push", P256DH: "test_p256dh", Auth: "test_auth"}},
		}}
		ch := NewPushChannel(subs, &webpush.Options{TTL: 60})

		var sent int
		ch.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				sent++
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.Equal(t, 60, options.TTL)

				var body pushPayload
				require.NoError(t, json.Unmarshal(payload, &body))
				assert.Equal(t, "Critical alert on Laser Cutter A", body.Title)
				assert.Equal(t, uint(5), body.AlertID)
				return response(http.StatusCreated), nil
			},
		}

		require.NoError(t, ch.Deliver(context.Background(), notice))
		assert.Equal(t, 1, sent)
		assert.Empty(t, subs.deleted)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		subs := &fakeSubscriptions{byID: map[uint][]model.PushSubscription{
			101: {
				{Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a"},
				{Endpoint: "https://example.com/live", P256DH: "k", Auth: "a"},
			},
		}}
		ch := NewPushChannel(subs, &webpush.Options{})
		ch.sender = &mockSender{
			SendFunc: func(_ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
				if sub.Endpoint == "https://example.com/expired" {
					return response(http.StatusGone), nil
				}
				return response(http.StatusCreated), nil
			},
		}

		require.NoError(t, ch.Deliver(context.Background(), notice))
		assert.Equal(t, []string{"https://example.com/expired"}, subs.deleted)
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		ch := NewPushChannel(&fakeSubscriptions{}, &webpush.Options{})
		ch.sender = &mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
			t.Fatal("unexpected send")
			return nil, nil
		}}
		assert.NoError(t, ch.Deliver(context.Background(), notice))
	})

	t.Run("lookup failure is reported", func(t *testing.T) {
		ch := NewPushChannel(&fakeSubscriptions{err: errors.New("db gone")}, &webpush.Options{})
		assert.ErrorContains(t, ch.Deliver(context.Background(), notice), "db gone")
	})
}

type fakePoster struct {
	channel string
	calls   int
}

func (f *fakePoster) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channel = channelID
	f.calls++
	return channelID, "1700000000.000100", nil
}

func TestSlackChannel_Deliver(t *testing.T) {
	poster := &fakePoster{}
	ch := &SlackChannel{client: poster, channel: "#shopfloor"}

	require.NoError(t, ch.Deliver(context.Background(), Notice{Kind: KindCriticalAlert, MachineID: 1, Priority: "critical"}))
	assert.Equal(t, "#shopfloor", poster.channel)
	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "slack", ch.Name())
}

type fakeDialer struct {
	sent []*gomail.Message
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return nil
}

func TestEmailChannel_Deliver(t *testing.T) {
	dialer := &fakeDialer{}
	ch := &EmailChannel{dialer: dialer, from: "ops@example.com", to: []string{"floor@example.com", "lead@example.com"}}

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ch.Deliver(context.Background(), Notice{Kind: KindMaintenanceDue, MachineID: 3, MachineName: "Drying Unit C", DueAt: due}))

	require.Len(t, dialer.sent, 1)
	m := dialer.sent[0]
	assert.Equal(t, []string{"Maintenance due for Drying Unit C"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"floor@example.com", "lead@example.com"}, m.GetHeader("To"))
}

func TestNoticeText(t *testing.T) {
	n := Notice{Kind: KindCriticalAlert, MachineID: 4, AlertID: 2, Title: "Smoke", Location: "Hall B"}
	assert.Equal(t, "Critical alert on machine 4", n.Subject())
	assert.Equal(t, `Alert #2 "Smoke" was raised on machine 4 (Hall B).`, n.Body())
}
