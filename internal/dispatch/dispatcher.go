package dispatch

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/logger"
)

// SuppressionStore is the slice of the repository the dispatcher needs.
type SuppressionStore interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	AddSuppression(ctx context.Context, s *domain.Suppression) error
}

// EventLog records delivery events.
type EventLog interface {
	LogEmailEvent(ctx context.Context, ev *domain.EmailEvent) error
}

// Dispatcher validates, gates, and sends one email at a time. A secondary
// sender, when configured, is tried after a transient primary failure.
type Dispatcher struct {
	primary      Sender
	secondary    Sender
	suppressions SuppressionStore
	events       EventLog
}

// NewDispatcher creates a dispatcher. secondary may be nil.
func NewDispatcher(primary, secondary Sender, suppressions SuppressionStore, events EventLog) *Dispatcher {
	return &Dispatcher{
		primary:      primary,
		secondary:    secondary,
		suppressions: suppressions,
		events:       events,
	}
}

// Send validates the recipient, refuses suppressed addresses, dispatches the
// message, and logs a SENT event on success. Permanent provider rejections
// that imply the address is unreachable also add a suppression entry.
func (d *Dispatcher) Send(ctx context.Context, msg *OutboundEmail) (*SendResult, error) {
	to := strings.TrimSpace(strings.ToLower(msg.To))
	if to == "" {
		return nil, ErrEmptyRecipient
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, ErrInvalidRecipient
	}
	msg.To = to

	suppressed, err := d.suppressions.IsSuppressed(ctx, to)
	if err != nil {
		return nil, err
	}
	if suppressed {
		logger.Info("Refusing send to suppressed address", "email", to, "user_id", msg.UserID)
		return nil, ErrSuppressed
	}

	result, err := d.primary.Send(ctx, msg)
	if err != nil && d.secondary != nil && Transient(err) {
		logger.Warn("Primary sender failed, trying secondary", "user_id", msg.UserID, "error", err.Error())
		result, err = d.secondary.Send(ctx, msg)
	}
	if err != nil {
		d.suppressIfUnreachable(ctx, to, err)
		return nil, err
	}

	if logErr := d.events.LogEmailEvent(ctx, &domain.EmailEvent{
		MessageID:  result.MessageID,
		Event:      domain.EventSent,
		UserID:     msg.UserID,
		OccurredAt: result.SentAt,
		Meta:       map[string]string{"provider": result.Provider},
	}); logErr != nil {
		// The send already happened; a missing event row must not fail it.
		logger.Error("Failed to log SENT event", "message_id", result.MessageID, "error", logErr.Error())
	}

	return result, nil
}

// suppressIfUnreachable adds a suppression entry for permanent rejections
// whose wording indicates the address itself cannot be delivered to.
func (d *Dispatcher) suppressIfUnreachable(ctx context.Context, email string, sendErr error) {
	var pc PermanenceClassifier
	if !errors.As(sendErr, &pc) || !pc.Permanent() {
		return
	}
	reason := strings.ToLower(pc.Error())
	if !strings.Contains(reason, "email") && !strings.Contains(reason, "recipient") &&
		!strings.Contains(reason, "address") {
		return
	}
	if err := d.suppressions.AddSuppression(ctx, &domain.Suppression{
		Email:     email,
		Reason:    domain.SuppressionBounce,
		Source:    domain.SourceDispatch,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		logger.Error("Failed to suppress unreachable address", "email", email, "error", err.Error())
	}
}

// unsubscribeHeaders builds the one-click unsubscribe headers carried on
// every digest.
func unsubscribeHeaders(unsubscribeURL, senderEmail string) map[string]string {
	return map[string]string{
		"List-Unsubscribe":      "<" + unsubscribeURL + ">, <mailto:" + senderEmail + "?subject=unsubscribe>",
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}
