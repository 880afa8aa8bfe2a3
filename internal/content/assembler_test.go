package content_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/questspace/digest-service/internal/content"
	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/schedule"
)

var (
	testNow    = time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC)
	testBounds = schedule.Boundaries(testNow, "UTC")
)

func testProfile() *domain.UserProfile {
	return &domain.UserProfile{UserID: "u1", Email: "jane@example.com", FirstName: "Jane"}
}

func testPrefs(policy domain.NoActivityPolicy) *domain.EmailPreferences {
	p := domain.DefaultPreferences("u1")
	p.NoActivityPolicy = policy
	return p
}

func insight(id string, createdAgo time.Duration, opts ...func(*domain.Insight)) domain.Insight {
	in := domain.Insight{
		ID:        id,
		UserID:    "u1",
		Title:     "Insight " + id,
		CreatedAt: testNow.Add(-createdAgo),
		UpdatedAt: testNow.Add(-createdAgo),
	}
	for _, o := range opts {
		o(&in)
	}
	return in
}

func withSummary(s string) func(*domain.Insight) {
	return func(in *domain.Insight) { in.Summary = s }
}

func withTags(tags ...string) func(*domain.Insight) {
	return func(in *domain.Insight) { in.Tags = tags }
}

func withURL(u string) func(*domain.Insight) {
	return func(in *domain.Insight) { in.URL = u }
}

func TestBuildSummaryCounters(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	insights := []domain.Insight{
		insight("1", 2*time.Hour, withURL("https://x.test/a"), withSummary("s"), withTags("go")),
		insight("2", 48*time.Hour),
	}
	p := a.Build(testProfile(), testPrefs(domain.PolicySkip), insights, nil, testBounds, testNow)

	s := p.ActivitySummary
	if s.TotalInsights != 2 {
		t.Fatalf("expected 2 insights, got %d", s.TotalInsights)
	}
	if s.URLInsights != 1 || s.TextInsights != 1 {
		t.Fatalf("expected 1 url + 1 text insight, got %d/%d", s.URLInsights, s.TextInsights)
	}
	if s.InsightsWithSummary != 1 || s.InsightsWithTags != 1 {
		t.Fatalf("unexpected enrichment counters: %+v", s)
	}
	if s.EngagementScore <= 0 {
		t.Fatal("expected positive engagement score")
	}
	if p.Metadata.Skipped {
		t.Fatal("non-empty week must not be marked skipped")
	}
}

func TestBuildRankingPrefersRichAndRecent(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	insights := []domain.Insight{
		insight("plain-old", 6*24*time.Hour),
		insight("rich", 2*time.Hour, withSummary("good"), withTags("x"), withURL("https://x.test")),
		insight("plain-new", 2*time.Hour),
	}
	p := a.Build(testProfile(), testPrefs(domain.PolicySkip), insights, nil, testBounds, testNow)

	if len(p.Sections.Highlights) != 3 {
		t.Fatalf("expected 3 highlights, got %d", len(p.Sections.Highlights))
	}
	if p.Sections.Highlights[0].Title != "Insight rich" {
		t.Fatalf("expected richest insight first, got %q", p.Sections.Highlights[0].Title)
	}
	if p.Sections.Highlights[1].Title != "Insight plain-new" {
		t.Fatalf("expected recency tie-break, got %q", p.Sections.Highlights[1].Title)
	}
}

func TestBuildSectionLimits(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	var insights []domain.Insight
	for i := 0; i < 15; i++ {
		insights = append(insights, insight(fmt.Sprintf("i%d", i), time.Duration(i)*time.Hour, withTags("t")))
	}
	var stacks []domain.Stack
	for i := 0; i < 8; i++ {
		stacks = append(stacks, domain.Stack{ID: fmt.Sprintf("s%d", i), Name: "Stack", ItemCount: i})
	}

	p := a.Build(testProfile(), testPrefs(domain.PolicySkip), insights, stacks, testBounds, testNow)

	if len(p.Sections.Highlights) != 3 {
		t.Fatalf("highlights capped at 3, got %d", len(p.Sections.Highlights))
	}
	if len(p.Sections.MoreContent) != 7 {
		t.Fatalf("more_content capped at 7, got %d", len(p.Sections.MoreContent))
	}
	if len(p.Sections.Stacks) != 5 {
		t.Fatalf("stacks capped at 5, got %d", len(p.Sections.Stacks))
	}
}

func TestBuildNoActivitySkip(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	p := a.Build(testProfile(), testPrefs(domain.PolicySkip), nil, nil, testBounds, testNow)

	if !p.SkipSending() {
		t.Fatal("skip policy with empty week must mark the payload skipped")
	}
	if p.Metadata.Reason != "no_activity" {
		t.Fatalf("expected no_activity reason, got %q", p.Metadata.Reason)
	}
}

func TestBuildNoActivityBrief(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	p := a.Build(testProfile(), testPrefs(domain.PolicyBrief), nil, nil, testBounds, testNow)

	if p.SkipSending() {
		t.Fatal("brief policy must still send")
	}
	if !p.Metadata.BriefMode {
		t.Fatal("expected brief_mode flag")
	}
	if len(p.Sections.Suggestions) != 1 {
		t.Fatalf("brief mode carries one nudge, got %d", len(p.Sections.Suggestions))
	}
}

func TestBuildNoActivitySuggestions(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	p := a.Build(testProfile(), testPrefs(domain.PolicySuggestions), nil, nil, testBounds, testNow)

	if !p.Metadata.SuggestionsMode {
		t.Fatal("expected suggestions_mode flag")
	}
	if len(p.Sections.Suggestions) != 3 {
		t.Fatalf("expected 3 evergreen suggestions, got %d", len(p.Sections.Suggestions))
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := content.NewAssembler("https://app.example.com")
	insights := []domain.Insight{
		insight("1", time.Hour, withSummary("s"), withTags("a", "b")),
		insight("2", 30*time.Hour, withURL("https://x.test")),
	}

	p1 := a.Build(testProfile(), testPrefs(domain.PolicyBrief), insights, nil, testBounds, testNow)
	p2 := a.Build(testProfile(), testPrefs(domain.PolicyBrief), insights, nil, testBounds, testNow)

	if fmt.Sprintf("%+v", p1) != fmt.Sprintf("%+v", p2) {
		t.Fatal("assembly must be deterministic for identical inputs")
	}
}
