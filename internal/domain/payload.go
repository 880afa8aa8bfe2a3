package domain

import "time"

// DigestPayload is the self-contained weekly digest document. It is built
// once by the content assembler, optionally enriched with an AI summary,
// serialized onto the digest record, and handed verbatim to the renderer.
type DigestPayload struct {
	User            PayloadUser     `json:"user"`
	ActivitySummary ActivitySummary `json:"activity_summary"`
	Sections        PayloadSections `json:"sections"`
	AISummary       string          `json:"ai_summary"`
	Metadata        PayloadMetadata `json:"metadata"`
}

// PayloadUser identifies and addresses the recipient.
type PayloadUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

// ActivitySummary carries the week's derived counters.
type ActivitySummary struct {
	TotalInsights       int     `json:"total_insights"`
	TotalStacks         int     `json:"total_stacks"`
	URLInsights         int     `json:"url_insights"`
	TextInsights        int     `json:"text_insights"`
	RecentInsights      int     `json:"recent_insights"`
	InsightsWithSummary int     `json:"insights_with_summary"`
	InsightsWithTags    int     `json:"insights_with_tags"`
	EngagementScore     float64 `json:"engagement_score"`
}

// PayloadSections holds the four rendered blocks of the digest body.
type PayloadSections struct {
	Highlights  []HighlightItem `json:"highlights"`
	MoreContent []MoreItem      `json:"more_content"`
	Stacks      []StackItem     `json:"stacks"`
	Suggestions []Suggestion    `json:"suggestions"`
}

// HighlightItem is a fully-dressed top item.
type HighlightItem struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	ImageURL string   `json:"image_url,omitempty"`
	URL      string   `json:"url,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// MoreItem is a compact entry below the highlights.
type MoreItem struct {
	Title string   `json:"title"`
	URL   string   `json:"url,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// StackItem summarizes a collection touched this week.
type StackItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ItemCount   int    `json:"item_count"`
}

// Suggestion is an actionable nudge shown when the week was thin.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionURL   string `json:"action_url,omitempty"`
}

// PayloadMetadata carries generation context and mode flags.
type PayloadMetadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	WeekStart       time.Time `json:"week_start"`
	WeekEnd         time.Time `json:"week_end"`
	Skipped         bool      `json:"skipped"`
	BriefMode       bool      `json:"brief_mode"`
	SuggestionsMode bool      `json:"suggestions_mode"`
	Error           bool      `json:"error"`
	Reason          string    `json:"reason,omitempty"`
}

// SkipSending reports whether the orchestrator should record the week
// without dispatching (empty week under the skip policy).
func (p *DigestPayload) SkipSending() bool {
	return p.Metadata.Skipped
}

// HasActivity reports whether the window contained any insights or stacks.
func (p *DigestPayload) HasActivity() bool {
	return p.ActivitySummary.TotalInsights > 0 || p.ActivitySummary.TotalStacks > 0
}
