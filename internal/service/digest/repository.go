package digest

import (
	"context"
	"time"

	"github.com/questspace/digest-service/internal/domain"
)

// SendableUser pairs a user's profile with their digest preferences, as
// returned by the eligibility query.
type SendableUser struct {
	Profile domain.UserProfile
	Prefs   domain.EmailPreferences
}

// Repository defines the data access contract for the digest pipeline.
// Implementations must be safe for concurrent use; UpsertDigest must be
// atomic on (user_id, week_start) so concurrent sweeps serialize on it.
type Repository interface {
	// GetSendableUsers returns every user with the weekly digest enabled,
	// joined with enough profile to address them. Users without an email
	// are dropped with a warning, not returned.
	GetSendableUsers(ctx context.Context) ([]SendableUser, error)

	// GetPreferences returns a user's preferences. Returns ErrNotFound if
	// none exist yet.
	GetPreferences(ctx context.Context, userID string) (*domain.EmailPreferences, error)

	// CreateDefaultPreferences inserts the default preference row for a
	// user. Inserting twice is a no-op returning the existing row.
	CreateDefaultPreferences(ctx context.Context, userID string) (*domain.EmailPreferences, error)

	// UpdatePreferences applies a partial update. Nil fields are untouched.
	UpdatePreferences(ctx context.Context, userID string, u domain.PreferencesUpdate) error

	// GetUserProfile resolves the read-only account record for a user.
	// Returns ErrNotFound for unknown users.
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// GetUserActivity returns insights and stacks created or updated in
	// [start, end).
	GetUserActivity(ctx context.Context, userID string, start, end time.Time) ([]domain.Insight, []domain.Stack, error)

	// GetDigestByUserWeek returns the digest record for the idempotency
	// key, or ErrNotFound.
	GetDigestByUserWeek(ctx context.Context, userID string, weekStart time.Time) (*domain.Digest, error)

	// UpsertDigest atomically creates the record for (user, week) in the
	// given status, or returns the existing one untouched.
	UpsertDigest(ctx context.Context, userID string, weekStart time.Time, status domain.DigestStatus) (*domain.Digest, error)

	// UpdateDigest applies a partial update to a digest record.
	// IncrementRetry bumps retry_count atomically in the store.
	UpdateDigest(ctx context.Context, id string, u domain.DigestUpdate) error

	// LogEmailEvent appends one delivery event.
	LogEmailEvent(ctx context.Context, ev *domain.EmailEvent) error

	// ResolveMessageUser maps a provider message id back to the digest's
	// user, best-effort. Returns "" when unknown.
	ResolveMessageUser(ctx context.Context, messageID string) (string, error)

	// IsSuppressed reports whether an address is on the suppression list.
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// AddSuppression blocks an address from further sends.
	AddSuppression(ctx context.Context, s *domain.Suppression) error

	// MintUnsubscribeToken returns the user's unsubscribe token, creating
	// one if needed.
	MintUnsubscribeToken(ctx context.Context, userID string) (string, error)

	// ResolveUnsubscribeToken maps a token back to its user, or ErrNotFound.
	ResolveUnsubscribeToken(ctx context.Context, token string) (string, error)

	// DigestStats aggregates digest statuses over the trailing window.
	DigestStats(ctx context.Context, days int) (*domain.DigestStats, error)

	// DeliveryStats aggregates the event log over the trailing window.
	DeliveryStats(ctx context.Context, days int) (*domain.DeliveryStats, error)
}
