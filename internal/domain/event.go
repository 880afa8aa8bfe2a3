package domain

import "time"

// EmailEventType enumerates provider delivery events tracked per message.
type EmailEventType string

const (
	EventSent         EmailEventType = "sent"
	EventDelivered    EmailEventType = "delivered"
	EventOpened       EmailEventType = "opened"
	EventClicked      EmailEventType = "clicked"
	EventBounced      EmailEventType = "bounced"
	EventBlocked      EmailEventType = "blocked"
	EventComplained   EmailEventType = "complained"
	EventUnsubscribed EmailEventType = "unsubscribed"
	EventSuppressed   EmailEventType = "suppressed"
)

// EmailEvent is an append-only delivery event. The event log, not the digest
// record, is the source of truth for delivery analytics.
type EmailEvent struct {
	ID         string            `json:"id" db:"id"`
	MessageID  string            `json:"message_id" db:"message_id"`
	Event      EmailEventType    `json:"event" db:"event"`
	UserID     string            `json:"user_id" db:"user_id"`
	OccurredAt time.Time         `json:"occurred_at" db:"occurred_at"`
	Meta       map[string]string `json:"meta,omitempty" db:"meta"`
}

// DeliveryStats summarizes the event log over a trailing window.
type DeliveryStats struct {
	Days         int            `json:"days"`
	TotalSent    int            `json:"total_sent"`
	ByEvent      map[string]int `json:"by_event"`
	DeliveryRate float64        `json:"delivery_rate"`
	OpenRate     float64        `json:"open_rate"`
	ClickRate    float64        `json:"click_rate"`
	BounceRate   float64        `json:"bounce_rate"`
}
