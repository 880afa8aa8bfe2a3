// Package dispatch sends rendered digest emails through an email provider.
// It owns recipient validation, the suppression gate, unsubscribe headers,
// SENT event logging, and send-time suppression of unreachable addresses.
package dispatch

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for send-time refusals. All are permanent: the orchestrator
// must not consume a retry on them.
var (
	ErrEmptyRecipient   = errors.New("recipient email is empty")
	ErrInvalidRecipient = errors.New("recipient email is not valid")
	ErrSuppressed       = errors.New("recipient email is suppressed")
)

// OutboundEmail is one rendered digest ready to send.
type OutboundEmail struct {
	UserID         string
	To             string
	ToName         string
	Subject        string
	HTMLContent    string
	TextContent    string
	TemplateParams map[string]interface{} // set when using a provider-hosted template
	UnsubscribeURL string
}

// SendResult reports the outcome of one provider call.
type SendResult struct {
	Success   bool
	MessageID string
	Provider  string
	Error     error
	SentAt    time.Time
}

// Sender delivers a single email through one provider.
type Sender interface {
	Send(ctx context.Context, msg *OutboundEmail) (*SendResult, error)
}

// Transient reports whether a send error is worth retrying on a later sweep.
// Validation and suppression refusals are permanent; provider errors follow
// their own classification; anything else (network, timeouts) is transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyRecipient) || errors.Is(err, ErrInvalidRecipient) || errors.Is(err, ErrSuppressed) {
		return false
	}
	var pc PermanenceClassifier
	if errors.As(err, &pc) {
		return !pc.Permanent()
	}
	return true
}

// PermanenceClassifier is implemented by provider errors that know whether
// retrying can succeed.
type PermanenceClassifier interface {
	error
	Permanent() bool
}
