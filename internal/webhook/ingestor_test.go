package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/webhook"
)

type memStore struct {
	mu          sync.Mutex
	events      []domain.EmailEvent
	suppressed  map[string]domain.SuppressionReason
	prefsUpdate map[string]domain.PreferencesUpdate
	messages    map[string]string // message id -> user id
}

func newMemStore() *memStore {
	return &memStore{
		suppressed:  make(map[string]domain.SuppressionReason),
		prefsUpdate: make(map[string]domain.PreferencesUpdate),
		messages:    map[string]string{"m1": "u1"},
	}
}

func (m *memStore) LogEmailEvent(_ context.Context, ev *domain.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *memStore) ResolveMessageUser(_ context.Context, messageID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[messageID], nil
}

func (m *memStore) AddSuppression(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed[s.Email] = s.Reason
	return nil
}

func (m *memStore) UpdatePreferences(_ context.Context, userID string, u domain.PreferencesUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefsUpdate[userID] = u
	return nil
}

func TestProcessDeliveredOnlyLogs(t *testing.T) {
	store := newMemStore()
	ing := webhook.NewIngestor(store)

	err := ing.ProcessEvent(context.Background(), &webhook.Event{
		Event: "delivered", MessageID: "m1", Email: "a@b.test", Date: "2025-09-10T13:05:00Z",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(store.events) != 1 || store.events[0].Event != domain.EventDelivered {
		t.Fatalf("expected one DELIVERED event, got %+v", store.events)
	}
	if store.events[0].UserID != "u1" {
		t.Fatal("user id must be resolved from the message id")
	}
	if !store.events[0].OccurredAt.Equal(time.Date(2025, 9, 10, 13, 5, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occurred_at %v", store.events[0].OccurredAt)
	}
	if len(store.suppressed) != 0 {
		t.Fatal("delivery events must not suppress")
	}
}

func TestProcessBounceSuppresses(t *testing.T) {
	store := newMemStore()
	ing := webhook.NewIngestor(store)

	ing.ProcessEvent(context.Background(), &webhook.Event{
		Event: "hard_bounce", MessageID: "m1", Email: "A@B.test", Reason: "mailbox does not exist",
	})

	if reason := store.suppressed["a@b.test"]; reason != domain.SuppressionBounce {
		t.Fatalf("expected bounce suppression, got %v", store.suppressed)
	}
	if store.events[0].Meta["reason"] != "mailbox does not exist" {
		t.Fatal("bounce reason must be carried in event meta")
	}
}

func TestProcessSpamSuppressesAsComplaint(t *testing.T) {
	store := newMemStore()
	ing := webhook.NewIngestor(store)

	ing.ProcessEvent(context.Background(), &webhook.Event{Event: "spam", MessageID: "m1", Email: "a@b.test"})

	if reason := store.suppressed["a@b.test"]; reason != domain.SuppressionComplaint {
		t.Fatalf("expected complaint suppression, got %v", store.suppressed)
	}
}

func TestProcessUnsubscribeDisablesPreference(t *testing.T) {
	store := newMemStore()
	ing := webhook.NewIngestor(store)

	ing.ProcessEvent(context.Background(), &webhook.Event{Event: "unsubscribed", MessageID: "m1", Email: "a@b.test"})

	if reason := store.suppressed["a@b.test"]; reason != domain.SuppressionUnsubscribe {
		t.Fatalf("expected unsubscribe suppression, got %v", store.suppressed)
	}
	u, ok := store.prefsUpdate["u1"]
	if !ok || u.WeeklyDigestEnabled == nil || *u.WeeklyDigestEnabled {
		t.Fatal("unsubscribe event must disable the weekly digest")
	}
}

func TestProcessClickedCarriesLink(t *testing.T) {
	store := newMemStore()
	ing := webhook.NewIngestor(store)

	ing.ProcessEvent(context.Background(), &webhook.Event{
		Event: "click", MessageID: "m1", Email: "a@b.test", Link: "https://x.test/a",
	})

	if store.events[0].Event != domain.EventClicked || store.events[0].Meta["link"] != "https://x.test/a" {
		t.Fatalf("expected clicked event with link meta, got %+v", store.events[0])
	}
}

func TestProcessUnknownEventIsAccepted(t *testing.T) {
	store := newMemStore()
	ing := webhook.NewIngestor(store)

	if err := ing.ProcessEvent(context.Background(), &webhook.Event{Event: "proxy_open", MessageID: "m1"}); err != nil {
		t.Fatalf("unknown events must be accepted, got %v", err)
	}
	if len(store.events) != 0 {
		t.Fatal("unknown events must not write state")
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"delivered"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !webhook.VerifySignature("secret", body, sig) {
		t.Fatal("valid signature rejected")
	}
	if webhook.VerifySignature("secret", body, "deadbeef") {
		t.Fatal("invalid signature accepted")
	}
	if !webhook.VerifySignature("", body, "") {
		t.Fatal("empty secret must disable verification")
	}
}
