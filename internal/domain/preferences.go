package domain

import "time"

// NoActivityPolicy controls what happens when a user has no activity in the
// digest window.
type NoActivityPolicy string

const (
	// PolicySkip suppresses the email entirely for empty weeks.
	PolicySkip NoActivityPolicy = "skip"
	// PolicyBrief sends a short check-in email with a single nudge.
	PolicyBrief NoActivityPolicy = "brief"
	// PolicySuggestions sends evergreen suggestions instead of content.
	PolicySuggestions NoActivityPolicy = "suggestions"
)

// Valid reports whether p is a known policy value.
func (p NoActivityPolicy) Valid() bool {
	return p == PolicySkip || p == PolicyBrief || p == PolicySuggestions
}

// EmailPreferences holds a user's weekly digest settings.
// Days use the 0=Monday .. 6=Sunday convention; hours are local to Timezone.
type EmailPreferences struct {
	UserID              string           `json:"user_id" db:"user_id"`
	WeeklyDigestEnabled bool             `json:"weekly_digest_enabled" db:"weekly_digest_enabled"`
	PreferredDay        int              `json:"preferred_day" db:"preferred_day"`
	PreferredHour       int              `json:"preferred_hour" db:"preferred_hour"`
	Timezone            string           `json:"timezone" db:"timezone"`
	NoActivityPolicy    NoActivityPolicy `json:"no_activity_policy" db:"no_activity_policy"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences returns the preferences created on a user's first
// interaction: enabled, Monday 09:00 UTC, brief mode for empty weeks.
func DefaultPreferences(userID string) *EmailPreferences {
	return &EmailPreferences{
		UserID:              userID,
		WeeklyDigestEnabled: true,
		PreferredDay:        0,
		PreferredHour:       9,
		Timezone:            "UTC",
		NoActivityPolicy:    PolicyBrief,
	}
}

// Normalize clamps out-of-range values back to safe defaults so a bad row
// never breaks scheduling.
func (p *EmailPreferences) Normalize() {
	if p.PreferredDay < 0 || p.PreferredDay > 6 {
		p.PreferredDay = 0
	}
	if p.PreferredHour < 0 || p.PreferredHour > 23 {
		p.PreferredHour = 9
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if !p.NoActivityPolicy.Valid() {
		p.NoActivityPolicy = PolicyBrief
	}
}

// PreferencesUpdate holds the mutable preference fields for a partial update.
// Nil fields are not applied.
type PreferencesUpdate struct {
	WeeklyDigestEnabled *bool             `json:"weekly_digest_enabled"`
	PreferredDay        *int              `json:"preferred_day"`
	PreferredHour       *int              `json:"preferred_hour"`
	Timezone            *string           `json:"timezone"`
	NoActivityPolicy    *NoActivityPolicy `json:"no_activity_policy"`
}
