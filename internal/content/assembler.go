// Package content builds the weekly digest payload from raw activity.
// Assembly is pure and deterministic: the same inputs always produce the
// same sections, so re-running a sweep never changes a recorded payload.
package content

import (
	"fmt"
	"sort"
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/logger"
	"github.com/questspace/digest-service/internal/schedule"
)

// Section size limits.
const (
	maxHighlights  = 3
	maxMoreContent = 7
	maxStacks      = 5
	maxSuggestions = 5
)

// Assembler turns a week of activity into a digest payload.
type Assembler struct {
	appBaseURL string
}

// NewAssembler creates an assembler. appBaseURL is used for deep links in
// suggestions.
func NewAssembler(appBaseURL string) *Assembler {
	return &Assembler{appBaseURL: appBaseURL}
}

// Build assembles the digest payload for one user. It never returns an
// error: any panic during assembly degrades to a minimal payload flagged
// with metadata.error, which the orchestrator records as a failed digest.
func (a *Assembler) Build(
	profile *domain.UserProfile,
	prefs *domain.EmailPreferences,
	insights []domain.Insight,
	stacks []domain.Stack,
	bounds schedule.WeekBoundaries,
	now time.Time,
) (payload *domain.DigestPayload) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Digest assembly panicked", "user_id", profile.UserID, "panic", fmt.Sprintf("%v", r))
			payload = a.errorPayload(profile, prefs, bounds, now)
		}
	}()

	meta := domain.PayloadMetadata{
		GeneratedAt: now,
		WeekStart:   bounds.PrevWeekStart,
		WeekEnd:     bounds.PrevWeekEnd,
	}

	p := &domain.DigestPayload{
		User:            userBlock(profile, prefs),
		ActivitySummary: summarize(insights, stacks, bounds),
		Metadata:        meta,
	}

	if len(insights) == 0 && len(stacks) == 0 {
		a.applyNoActivityPolicy(p, prefs.NoActivityPolicy)
		return p
	}

	ranked := rankInsights(insights, now)

	p.Sections.Highlights = highlights(ranked)
	p.Sections.MoreContent = moreContent(ranked)
	p.Sections.Stacks = stackSection(stacks)
	p.Sections.Suggestions = a.suggestions(insights, stacks)
	return p
}

func userBlock(profile *domain.UserProfile, prefs *domain.EmailPreferences) domain.PayloadUser {
	return domain.PayloadUser{
		ID:       profile.UserID,
		Name:     profile.DisplayName(),
		Email:    profile.Email,
		Timezone: prefs.Timezone,
	}
}

func summarize(insights []domain.Insight, stacks []domain.Stack, bounds schedule.WeekBoundaries) domain.ActivitySummary {
	s := domain.ActivitySummary{
		TotalInsights: len(insights),
		TotalStacks:   len(stacks),
	}

	recentCutoff := bounds.PrevWeekEnd.AddDate(0, 0, -3)
	for _, in := range insights {
		if in.URL != "" {
			s.URLInsights++
		} else {
			s.TextInsights++
		}
		if !in.CreatedAt.Before(recentCutoff) {
			s.RecentInsights++
		}
		if in.Summary != "" {
			s.InsightsWithSummary++
		}
		if len(in.Tags) > 0 {
			s.InsightsWithTags++
		}
	}

	s.EngagementScore = engagementScore(s)
	return s
}

// engagementScore is a bounded heuristic of how actively the user curated
// their captures this week, on a 0-100 scale.
func engagementScore(s domain.ActivitySummary) float64 {
	raw := float64(s.TotalInsights)*5 +
		float64(s.TotalStacks)*10 +
		float64(s.InsightsWithTags)*2 +
		float64(s.InsightsWithSummary)*3
	if raw > 100 {
		return 100
	}
	return raw
}

// scoreInsight ranks an insight for the highlights section. Completeness
// (summary, tags, url) and recency both raise the score.
func scoreInsight(in *domain.Insight, now time.Time) float64 {
	var score float64
	if in.Title != "" {
		score += 1
	}
	if in.Summary != "" {
		score += 2
	}
	if len(in.Tags) > 0 {
		score += 1
	}
	if in.URL != "" {
		score += 1
	}

	age := now.Sub(in.CreatedAt)
	switch {
	case age < 24*time.Hour:
		score += 3
	case age < 3*24*time.Hour:
		score += 2
	case age < 7*24*time.Hour:
		score += 1
	}
	return score
}

func rankInsights(insights []domain.Insight, now time.Time) []domain.Insight {
	ranked := make([]domain.Insight, len(insights))
	copy(ranked, insights)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scoreInsight(&ranked[i], now), scoreInsight(&ranked[j], now)
		if si != sj {
			return si > sj
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	return ranked
}

func highlights(ranked []domain.Insight) []domain.HighlightItem {
	n := len(ranked)
	if n > maxHighlights {
		n = maxHighlights
	}
	out := make([]domain.HighlightItem, 0, n)
	for _, in := range ranked[:n] {
		subtitle := in.Summary
		if subtitle == "" {
			subtitle = in.Description
		}
		out = append(out, domain.HighlightItem{
			Title:    titleOrFallback(&in),
			Subtitle: subtitle,
			ImageURL: in.ImageURL,
			URL:      in.URL,
			Tags:     in.Tags,
		})
	}
	return out
}

func moreContent(ranked []domain.Insight) []domain.MoreItem {
	if len(ranked) <= maxHighlights {
		return nil
	}
	rest := ranked[maxHighlights:]
	if len(rest) > maxMoreContent {
		rest = rest[:maxMoreContent]
	}
	out := make([]domain.MoreItem, 0, len(rest))
	for _, in := range rest {
		out = append(out, domain.MoreItem{
			Title: titleOrFallback(&in),
			URL:   in.URL,
			Tags:  in.Tags,
		})
	}
	return out
}

func titleOrFallback(in *domain.Insight) string {
	if in.Title != "" {
		return in.Title
	}
	if in.URL != "" {
		return in.URL
	}
	return "Untitled insight"
}

func stackSection(stacks []domain.Stack) []domain.StackItem {
	n := len(stacks)
	if n > maxStacks {
		n = maxStacks
	}
	out := make([]domain.StackItem, 0, n)
	for _, st := range stacks[:n] {
		out = append(out, domain.StackItem{
			Name:        st.Name,
			Description: st.Description,
			ItemCount:   st.ItemCount,
		})
	}
	return out
}

// suggestions emits nudges when the week shows curation gaps: few stacks,
// many untagged captures, or very low activity overall.
func (a *Assembler) suggestions(insights []domain.Insight, stacks []domain.Stack) []domain.Suggestion {
	var out []domain.Suggestion

	untagged := 0
	for _, in := range insights {
		if len(in.Tags) == 0 {
			untagged++
		}
	}

	if len(stacks) < 2 && len(insights) > 0 {
		out = append(out, domain.Suggestion{
			Title:       "Organize into stacks",
			Description: "Group this week's insights into stacks to make them easier to revisit.",
			ActionURL:   a.appBaseURL + "/stacks",
		})
	}
	if untagged > 3 {
		out = append(out, domain.Suggestion{
			Title:       "Tag your insights",
			Description: fmt.Sprintf("%d insights from this week have no tags yet.", untagged),
			ActionURL:   a.appBaseURL + "/insights?filter=untagged",
		})
	}
	if len(insights) < 3 {
		out = append(out, domain.Suggestion{
			Title:       "Capture as you read",
			Description: "Save articles and notes during the week and next week's digest will have more to show.",
			ActionURL:   a.appBaseURL + "/capture",
		})
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func (a *Assembler) applyNoActivityPolicy(p *domain.DigestPayload, policy domain.NoActivityPolicy) {
	switch policy {
	case domain.PolicySkip:
		p.Metadata.Skipped = true
		p.Metadata.Reason = "no_activity"
	case domain.PolicySuggestions:
		p.Metadata.SuggestionsMode = true
		p.Sections.Suggestions = a.evergreenSuggestions()
	default: // brief
		p.Metadata.BriefMode = true
		p.Sections.Suggestions = []domain.Suggestion{{
			Title:       "Quiet week? That's fine.",
			Description: "Capture one interesting thing this week and it will show up here next Monday.",
			ActionURL:   a.appBaseURL + "/capture",
		}}
	}
}

func (a *Assembler) evergreenSuggestions() []domain.Suggestion {
	return []domain.Suggestion{
		{
			Title:       "Revisit an old favorite",
			Description: "Pick one saved insight from last month and re-read it with fresh eyes.",
			ActionURL:   a.appBaseURL + "/insights",
		},
		{
			Title:       "Start a stack",
			Description: "Create a stack around a topic you keep coming back to.",
			ActionURL:   a.appBaseURL + "/stacks",
		},
		{
			Title:       "Capture something today",
			Description: "One saved article is enough to restart the habit.",
			ActionURL:   a.appBaseURL + "/capture",
		},
	}
}

// errorPayload is the minimal valid payload recorded when assembly fails.
func (a *Assembler) errorPayload(
	profile *domain.UserProfile,
	prefs *domain.EmailPreferences,
	bounds schedule.WeekBoundaries,
	now time.Time,
) *domain.DigestPayload {
	return &domain.DigestPayload{
		User: userBlock(profile, prefs),
		Metadata: domain.PayloadMetadata{
			GeneratedAt: now,
			WeekStart:   bounds.PrevWeekStart,
			WeekEnd:     bounds.PrevWeekEnd,
			Error:       true,
			Reason:      "content_generation_failed",
		},
	}
}
