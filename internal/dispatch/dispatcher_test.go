package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/questspace/digest-service/internal/brevo"
	"github.com/questspace/digest-service/internal/dispatch"
	"github.com/questspace/digest-service/internal/domain"
)

type memSuppressions struct {
	mu      sync.Mutex
	blocked map[string]domain.SuppressionReason
}

func newMemSuppressions() *memSuppressions {
	return &memSuppressions{blocked: make(map[string]domain.SuppressionReason)}
}

func (m *memSuppressions) IsSuppressed(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blocked[email]
	return ok, nil
}

func (m *memSuppressions) AddSuppression(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[s.Email] = s.Reason
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []domain.EmailEvent
}

func (m *memEvents) LogEmailEvent(_ context.Context, ev *domain.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

type fakeSender struct {
	calls int
	err   error
	id    string
}

func (f *fakeSender) Send(_ context.Context, _ *dispatch.OutboundEmail) (*dispatch.SendResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &dispatch.SendResult{Success: true, MessageID: f.id, Provider: "fake", SentAt: time.Now()}, nil
}

func outbound(to string) *dispatch.OutboundEmail {
	return &dispatch.OutboundEmail{
		UserID:         "u1",
		To:             to,
		ToName:         "Jane",
		Subject:        "Your Weekly Digest",
		HTMLContent:    "<html></html>",
		UnsubscribeURL: "https://app.test/unsubscribe?token=t",
	}
}

func TestSendRefusesEmptyAndInvalid(t *testing.T) {
	sender := &fakeSender{id: "m1"}
	d := dispatch.NewDispatcher(sender, nil, newMemSuppressions(), &memEvents{})

	if _, err := d.Send(context.Background(), outbound("")); !errors.Is(err, dispatch.ErrEmptyRecipient) {
		t.Fatalf("expected ErrEmptyRecipient, got %v", err)
	}
	if _, err := d.Send(context.Background(), outbound("not-an-email")); !errors.Is(err, dispatch.ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if sender.calls != 0 {
		t.Fatal("provider must not be called for refused recipients")
	}
}

func TestSendRefusesSuppressed(t *testing.T) {
	supp := newMemSuppressions()
	supp.AddSuppression(context.Background(), &domain.Suppression{Email: "jane@example.com", Reason: domain.SuppressionBounce})

	sender := &fakeSender{id: "m1"}
	d := dispatch.NewDispatcher(sender, nil, supp, &memEvents{})

	_, err := d.Send(context.Background(), outbound("jane@example.com"))
	if !errors.Is(err, dispatch.ErrSuppressed) {
		t.Fatalf("expected ErrSuppressed, got %v", err)
	}
	if sender.calls != 0 {
		t.Fatal("provider must not be called for suppressed recipients")
	}
}

func TestSendLogsSentEvent(t *testing.T) {
	events := &memEvents{}
	d := dispatch.NewDispatcher(&fakeSender{id: "prov_msg_1"}, nil, newMemSuppressions(), events)

	res, err := d.Send(context.Background(), outbound("jane@example.com"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.MessageID != "prov_msg_1" {
		t.Fatalf("unexpected message id %q", res.MessageID)
	}
	if len(events.events) != 1 || events.events[0].Event != domain.EventSent {
		t.Fatalf("expected exactly one SENT event, got %+v", events.events)
	}
	if events.events[0].UserID != "u1" {
		t.Fatal("SENT event must carry the user id")
	}
}

func TestSendFallsBackOnTransientFailure(t *testing.T) {
	primary := &fakeSender{err: &brevo.APIError{StatusCode: 503, Body: "unavailable"}}
	secondary := &fakeSender{id: "ses-1"}
	d := dispatch.NewDispatcher(primary, secondary, newMemSuppressions(), &memEvents{})

	res, err := d.Send(context.Background(), outbound("jane@example.com"))
	if err != nil {
		t.Fatalf("expected secondary to succeed, got %v", err)
	}
	if res.MessageID != "ses-1" || secondary.calls != 1 {
		t.Fatal("secondary sender was not used")
	}
}

func TestSendNoFallbackOnPermanentFailure(t *testing.T) {
	primary := &fakeSender{err: &brevo.APIError{StatusCode: 400, Body: "bad template"}}
	secondary := &fakeSender{id: "ses-1"}
	d := dispatch.NewDispatcher(primary, secondary, newMemSuppressions(), &memEvents{})

	if _, err := d.Send(context.Background(), outbound("jane@example.com")); err == nil {
		t.Fatal("expected permanent error to propagate")
	}
	if secondary.calls != 0 {
		t.Fatal("permanent failures must not hit the secondary sender")
	}
}

func TestSendSuppressesUnreachableAddress(t *testing.T) {
	supp := newMemSuppressions()
	primary := &fakeSender{err: &brevo.APIError{StatusCode: 400, Body: "email address is not valid"}}
	d := dispatch.NewDispatcher(primary, nil, supp, &memEvents{})

	d.Send(context.Background(), outbound("gone@example.com"))

	if reason, ok := supp.blocked["gone@example.com"]; !ok || reason != domain.SuppressionBounce {
		t.Fatalf("expected bounce suppression for unreachable address, got %v", supp.blocked)
	}
}

func TestTransientClassification(t *testing.T) {
	cases := []struct {
		err       error
		transient bool
	}{
		{nil, false},
		{dispatch.ErrSuppressed, false},
		{dispatch.ErrInvalidRecipient, false},
		{&brevo.APIError{StatusCode: 400}, false},
		{&brevo.APIError{StatusCode: 429}, true},
		{&brevo.APIError{StatusCode: 500}, true},
		{errors.New("dial tcp: connection refused"), true},
	}
	for _, c := range cases {
		if got := dispatch.Transient(c.err); got != c.transient {
			t.Errorf("Transient(%v) = %v, want %v", c.err, got, c.transient)
		}
	}
}
