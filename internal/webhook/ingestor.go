// Package webhook ingests delivery events reported by the email provider
// and translates them into event-log rows, suppression entries, and
// preference changes.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/logger"
)

// Store is the slice of the repository the ingestor writes through.
type Store interface {
	LogEmailEvent(ctx context.Context, ev *domain.EmailEvent) error
	ResolveMessageUser(ctx context.Context, messageID string) (string, error)
	AddSuppression(ctx context.Context, s *domain.Suppression) error
	UpdatePreferences(ctx context.Context, userID string, u domain.PreferencesUpdate) error
}

// Event is the provider callback payload. Unknown event names are accepted
// and logged without state changes.
type Event struct {
	Event     string `json:"event"`
	MessageID string `json:"message-id"`
	Email     string `json:"email"`
	Date      string `json:"date"`
	Link      string `json:"link,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Ingestor processes provider events.
type Ingestor struct {
	store Store
}

// NewIngestor creates a webhook ingestor.
func NewIngestor(store Store) *Ingestor {
	return &Ingestor{store: store}
}

// eventTypes maps provider event names onto the internal event log values.
var eventTypes = map[string]domain.EmailEventType{
	"delivered":     domain.EventDelivered,
	"opened":        domain.EventOpened,
	"unique_opened": domain.EventOpened,
	"click":         domain.EventClicked,
	"clicked":       domain.EventClicked,
	"bounce":        domain.EventBounced,
	"bounced":       domain.EventBounced,
	"hard_bounce":   domain.EventBounced,
	"soft_bounce":   domain.EventBounced,
	"blocked":       domain.EventBlocked,
	"spam":          domain.EventComplained,
	"complaint":     domain.EventComplained,
	"unsubscribe":   domain.EventUnsubscribed,
	"unsubscribed":  domain.EventUnsubscribed,
}

// ProcessEvent logs the event and applies its side effects: bounces and
// blocks suppress the address, complaints suppress it with the complaint
// reason, unsubscribes additionally disable the user's digest preference.
// Delivery and engagement events only log.
func (i *Ingestor) ProcessEvent(ctx context.Context, ev *Event) error {
	eventType, known := eventTypes[strings.ToLower(ev.Event)]
	if !known {
		logger.Info("Ignoring unknown webhook event", "event", ev.Event, "message_id", ev.MessageID)
		return nil
	}

	occurredAt := parseEventTime(ev.Date)
	email := strings.ToLower(strings.TrimSpace(ev.Email))

	// Best-effort: events for messages we did not send still get logged.
	userID, err := i.store.ResolveMessageUser(ctx, ev.MessageID)
	if err != nil {
		logger.Warn("Could not resolve message user", "message_id", ev.MessageID, "error", err.Error())
		userID = ""
	}

	meta := map[string]string{}
	if ev.Link != "" {
		meta["link"] = ev.Link
	}
	if ev.Reason != "" {
		meta["reason"] = ev.Reason
	}
	if email != "" {
		meta["email"] = email
	}

	if err := i.store.LogEmailEvent(ctx, &domain.EmailEvent{
		MessageID:  ev.MessageID,
		Event:      eventType,
		UserID:     userID,
		OccurredAt: occurredAt,
		Meta:       meta,
	}); err != nil {
		return err
	}

	switch eventType {
	case domain.EventBounced, domain.EventBlocked:
		i.suppress(ctx, email, domain.SuppressionBounce)
	case domain.EventComplained:
		i.suppress(ctx, email, domain.SuppressionComplaint)
	case domain.EventUnsubscribed:
		i.suppress(ctx, email, domain.SuppressionUnsubscribe)
		if userID != "" {
			disabled := false
			if err := i.store.UpdatePreferences(ctx, userID, domain.PreferencesUpdate{WeeklyDigestEnabled: &disabled}); err != nil {
				logger.Error("Failed to disable digest after unsubscribe event", "user_id", userID, "error", err.Error())
			}
		}
	}

	return nil
}

func (i *Ingestor) suppress(ctx context.Context, email string, reason domain.SuppressionReason) {
	if email == "" {
		return
	}
	if err := i.store.AddSuppression(ctx, &domain.Suppression{
		Email:     email,
		Reason:    reason,
		Source:    domain.SourceWebhook,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		logger.Error("Failed to add suppression from webhook", "email", email, "error", err.Error())
	}
}

// parseEventTime accepts the timestamp formats the provider emits, falling
// back to now for anything unparseable.
func parseEventTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// VerifySignature checks the HMAC-SHA256 hex signature over the raw body.
// An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
