package domain

import "time"

// DigestStatus enumerates the lifecycle states of a weekly digest record.
type DigestStatus string

const (
	DigestQueued   DigestStatus = "queued"
	DigestRendered DigestStatus = "rendered"
	DigestSent     DigestStatus = "sent"
	DigestFailed   DigestStatus = "failed"
	DigestSkipped  DigestStatus = "skipped"
)

// Sentinel message IDs recorded when a digest reaches a terminal state
// without a real provider dispatch.
const (
	MessageIDSkipped = "skipped"
	MessageIDDryRun  = "dry_run"
)

// Digest is the per-(user, week) delivery record. The (UserID, WeekStart)
// pair is unique and acts as the idempotency key for the whole pipeline.
type Digest struct {
	ID         string       `json:"id" db:"id"`
	UserID     string       `json:"user_id" db:"user_id"`
	WeekStart  time.Time    `json:"week_start" db:"week_start"` // local-calendar date, midnight UTC
	Status     DigestStatus `json:"status" db:"status"`
	MessageID  string       `json:"message_id" db:"message_id"`
	Error      string       `json:"error" db:"error"`
	RetryCount int          `json:"retry_count" db:"retry_count"`
	Payload    []byte       `json:"payload,omitempty" db:"payload"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true when no future sweep should touch this record.
func (d *Digest) IsTerminal() bool {
	return d.Status == DigestSent || d.Status == DigestSkipped
}

// InProgress returns true while a sweep holds the record between queue and
// send. A concurrent sweep observing this must not re-enter.
func (d *Digest) InProgress() bool {
	return d.Status == DigestQueued || d.Status == DigestRendered
}

// WasDispatched reports whether a real provider send happened.
func (d *Digest) WasDispatched() bool {
	return d.Status == DigestSent &&
		d.MessageID != "" &&
		d.MessageID != MessageIDSkipped &&
		d.MessageID != MessageIDDryRun
}

// DigestUpdate holds the partial-update fields for a digest record.
// Nil fields are left untouched; IncrementRetry bumps retry_count atomically
// in the store rather than read-modify-write in the caller.
type DigestUpdate struct {
	Status         *DigestStatus
	MessageID      *string
	Error          *string
	Payload        []byte
	IncrementRetry bool
}

// DigestStats aggregates digest outcomes over a trailing window.
type DigestStats struct {
	Days         int            `json:"days"`
	TotalDigests int            `json:"total_digests"`
	ByStatus     map[string]int `json:"by_status"`
}
