package digest

import "time"

// OutcomeStatus is the top-level result of processing one user.
type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome reasons. These are stable strings surfaced in sweep summaries and
// API responses.
const (
	ReasonNotSendTime      = "not_send_time"
	ReasonAlreadySent      = "already_sent"
	ReasonInProgress       = "in_progress"
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonNoActivitySkip   = "no_activity_skip"
	ReasonDryRun           = "dry_run"
	ReasonEmailSent        = "email_sent"
	ReasonMissingProfile   = "missing_profile"
	ReasonContentFailed    = "content_generation_failed"
	ReasonRenderFailed     = "render_failed"
	ReasonSendFailed       = "email_send_failed"
	ReasonSuppressed       = "suppressed"
	ReasonUnexpected       = "unexpected_error"
)

// Outcome is the per-user result value. Failures are data, not exceptions:
// one bad user never aborts a sweep.
type Outcome struct {
	UserID    string        `json:"user_id"`
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason"`
	DigestID  string        `json:"digest_id,omitempty"`
	MessageID string        `json:"message_id,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func skipped(userID, reason string) Outcome {
	return Outcome{UserID: userID, Status: OutcomeSkipped, Reason: reason}
}

func failed(userID, digestID, reason, errMsg string) Outcome {
	return Outcome{UserID: userID, Status: OutcomeFailed, Reason: reason, DigestID: digestID, Error: errMsg}
}

func sent(userID, digestID, messageID, reason string) Outcome {
	return Outcome{UserID: userID, Status: OutcomeSent, Reason: reason, DigestID: digestID, MessageID: messageID}
}

// SweepResult aggregates one orchestrator invocation.
type SweepResult struct {
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Processed int           `json:"processed"`
	Sent      int           `json:"sent"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Errors    []string      `json:"errors,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
