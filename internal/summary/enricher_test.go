package summary_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/summary"
)

func weekInsights() []domain.Insight {
	now := time.Now()
	return []domain.Insight{
		{ID: "1", Title: "Go concurrency patterns", Tags: []string{"go", "concurrency"}, CreatedAt: now},
		{ID: "2", Title: "Postgres upserts", Tags: []string{"postgres"}, CreatedAt: now},
		{ID: "3", Title: "Queueing theory", Tags: []string{"go"}, CreatedAt: now},
	}
}

func TestSummarizeEmptyWeek(t *testing.T) {
	e := summary.NewEnricher("", "", "")
	if got := e.Summarize(context.Background(), "u1", nil); got != "" {
		t.Fatalf("empty week must produce empty summary, got %q", got)
	}
}

func TestSummarizeWithoutAPIKeyUsesFallback(t *testing.T) {
	e := summary.NewEnricher("", "", "")
	got := e.Summarize(context.Background(), "u1", weekInsights())

	if !strings.Contains(got, "You captured 3 insights this week.") {
		t.Fatalf("expected deterministic fallback, got %q", got)
	}
	if !strings.Contains(got, "go") {
		t.Fatalf("expected dominant tag in themes, got %q", got)
	}

	again := e.Summarize(context.Background(), "u1", weekInsights())
	if got != again {
		t.Fatal("fallback summary must be deterministic")
	}
}

func TestSummarizeNormalizesBullets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"- You read a lot about Go\n* Postgres came up twice\n- Third theme\n- Fourth should be dropped"}}]}`))
	}))
	defer srv.Close()

	e := summary.NewEnricher("test-key", srv.URL, "gpt-4o-mini")
	got := e.Summarize(context.Background(), "u1", weekInsights())

	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 bullets max, got %d: %q", len(lines), got)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "• ") {
			t.Fatalf("bullets must be normalized to '• ', got %q", line)
		}
	}
}

func TestSummarizeTruncatesLongBullets(t *testing.T) {
	long := strings.Repeat("a", 180)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"- ` + long + `"}}]}`))
	}))
	defer srv.Close()

	e := summary.NewEnricher("test-key", srv.URL, "")
	got := e.Summarize(context.Background(), "u1", weekInsights())

	if !strings.HasSuffix(got, "…") {
		t.Fatalf("overlong bullet must end with ellipsis, got %q", got)
	}
}

func TestSummarizeTruncationIsRuneSafe(t *testing.T) {
	long := strings.Repeat("ナ", 150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"- ` + long + `"}}]}`))
	}))
	defer srv.Close()

	e := summary.NewEnricher("test-key", srv.URL, "")
	got := e.Summarize(context.Background(), "u1", weekInsights())

	if !utf8.ValidString(got) {
		t.Fatalf("truncated bullet must stay valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("overlong bullet must end with ellipsis, got %q", got)
	}
}

func TestSummarizeServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest) // non-retryable, fails fast
	}))
	defer srv.Close()

	e := summary.NewEnricher("test-key", srv.URL, "")
	got := e.Summarize(context.Background(), "u1", weekInsights())

	if !strings.Contains(got, "You captured 3 insights this week.") {
		t.Fatalf("expected fallback on provider error, got %q", got)
	}
}
