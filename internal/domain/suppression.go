package domain

import "time"

// SuppressionReason records why an address was blocked from further sends.
type SuppressionReason string

const (
	SuppressionBounce      SuppressionReason = "bounce"
	SuppressionComplaint   SuppressionReason = "complaint"
	SuppressionUnsubscribe SuppressionReason = "unsubscribe"
	SuppressionManual      SuppressionReason = "manual"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceWebhook  SuppressionSource = "provider_webhook"
	SourceDispatch SuppressionSource = "dispatch_rejection"
	SourceManual   SuppressionSource = "manual"
)

// Suppression is a permanent block on sending further digests to an address.
type Suppression struct {
	Email     string            `json:"email" db:"email"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Source    SuppressionSource `json:"source" db:"source"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
