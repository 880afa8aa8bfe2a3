// Package summary produces a short natural-language recap of a user's week
// via an OpenAI-compatible chat API. The enricher is strictly best-effort:
// any failure falls back to a deterministic template so a digest never fails
// because of the LLM.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/httpretry"
	"github.com/questspace/digest-service/internal/pkg/logger"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	maxBullets      = 3
	maxBulletLength = 100
)

// Enricher calls the chat completions endpoint to summarize a week of
// insights into at most three short bullets.
type Enricher struct {
	apiKey  string
	baseURL string
	model   string
	client  httpretry.HTTPDoer
	timeout time.Duration
}

// NewEnricher creates a summary enricher. An empty apiKey disables the API
// call entirely; Summarize then always returns the fallback text.
func NewEnricher(apiKey, baseURL, model string) *Enricher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Enricher{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 2),
		timeout: 30 * time.Second,
	}
}

// SetClient replaces the HTTP client, used by tests.
func (e *Enricher) SetClient(c httpretry.HTTPDoer) { e.client = c }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize returns up to three bullet lines describing the week. It never
// fails: on any error the deterministic fallback is returned instead.
func (e *Enricher) Summarize(ctx context.Context, userID string, insights []domain.Insight) string {
	if len(insights) == 0 {
		return ""
	}
	if e.apiKey == "" {
		return fallbackSummary(insights)
	}

	text, err := e.complete(ctx, insights)
	if err != nil {
		logger.Warn("AI summary failed, using fallback", "user_id", userID, "error", err.Error())
		return fallbackSummary(insights)
	}

	cleaned := normalizeBullets(text)
	if cleaned == "" {
		return fallbackSummary(insights)
	}
	return cleaned
}

func (e *Enricher) complete(ctx context.Context, insights []domain.Insight) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize a user's saved reading for a weekly digest email. Reply with at most 3 short bullet points, each under 100 characters. No preamble."},
			{Role: "user", Content: buildPrompt(insights)},
		},
		Temperature: 0.3,
		MaxTokens:   800,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

func buildPrompt(insights []domain.Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This week the user saved %d items:\n", len(insights))
	limit := len(insights)
	if limit > 20 {
		limit = 20
	}
	for _, in := range insights[:limit] {
		title := in.Title
		if title == "" {
			title = in.URL
		}
		fmt.Fprintf(&b, "- %s", title)
		if len(in.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(in.Tags, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Summarize the themes of the week.")
	return b.String()
}

// normalizeBullets rewrites model output into at most three "• " lines,
// truncating overlong lines with an ellipsis.
func normalizeBullets(text string) string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•–")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Truncate on rune boundaries; titles are not always ASCII.
		if runes := []rune(line); len(runes) > maxBulletLength {
			line = string(runes[:maxBulletLength-1]) + "…"
		}
		bullets = append(bullets, "• "+line)
		if len(bullets) == maxBullets {
			break
		}
	}
	return strings.Join(bullets, "\n")
}

// fallbackSummary is the deterministic recap used when the LLM is disabled
// or unavailable.
func fallbackSummary(insights []domain.Insight) string {
	bullets := []string{
		fmt.Sprintf("You captured %d insight%s this week.", len(insights), plural(len(insights))),
	}
	if themes := topTags(insights, 3); len(themes) > 0 {
		bullets = append(bullets, "Main themes: "+strings.Join(themes, ", ")+".")
	}
	bullets = append(bullets, "Keep building your knowledge base!")
	return normalizeBullets(strings.Join(bullets, "\n"))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// topTags returns the most frequent tags, ties broken alphabetically so the
// fallback stays deterministic.
func topTags(insights []domain.Insight, limit int) []string {
	counts := map[string]int{}
	for _, in := range insights {
		for _, tag := range in.Tags {
			counts[strings.ToLower(tag)]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}
