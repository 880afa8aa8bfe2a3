// Package render converts a digest payload into a concrete email message:
// subject plus self-contained HTML and plain-text bodies, or a parameter map
// for a provider-hosted template. Bodies are rendered with Liquid so copy
// tweaks never require code changes.
package render

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/osteele/liquid"

	"github.com/questspace/digest-service/internal/domain"
)

// Message is a fully rendered email ready for dispatch.
type Message struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Renderer renders digest payloads. Templates are parsed once at
// construction; rendering is safe for concurrent use.
type Renderer struct {
	engine   *liquid.Engine
	htmlTpl  *liquid.Template
	textTpl  *liquid.Template
	loginURL string
}

// NewRenderer creates a renderer. loginURL is embedded as the digest's main
// call-to-action link.
func NewRenderer(loginURL string) (*Renderer, error) {
	engine := liquid.NewEngine()
	registerFilters(engine)

	htmlTpl, err := engine.ParseString(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	textTpl, err := engine.ParseString(textTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}

	return &Renderer{
		engine:   engine,
		htmlTpl:  htmlTpl,
		textTpl:  textTpl,
		loginURL: loginURL,
	}, nil
}

func registerFilters(engine *liquid.Engine) {
	// Fallback value: {{ user.name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Truncate with ellipsis: {{ item.subtitle | truncate: 140 }}
	// Counts runes, not bytes, so multi-byte titles are never split mid-rune.
	engine.RegisterFilter("truncate", func(s string, length int) string {
		runes := []rune(s)
		if len(runes) <= length {
			return s
		}
		if length <= 3 {
			return string(runes[:length])
		}
		return string(runes[:length-3]) + "..."
	})

	// HTML escape: {{ item.title | escape }}
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// URL encode: {{ user.email | urlencode }}
	engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})
}

// Subject builds the digest subject line.
func (r *Renderer) Subject(p *domain.DigestPayload) string {
	n := p.ActivitySummary.TotalInsights
	if n > 0 {
		return fmt.Sprintf("Your Weekly Digest — %d new insight%s", n, plural(n))
	}
	return "Your Weekly Digest"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Render produces the inline subject/html/text message for a payload.
func (r *Renderer) Render(p *domain.DigestPayload, unsubscribeURL string) (*Message, error) {
	ctx, err := payloadContext(p)
	if err != nil {
		return nil, err
	}
	ctx["login_url"] = r.loginURL
	ctx["unsubscribe_url"] = unsubscribeURL
	ctx["subject"] = r.Subject(p)

	htmlBody, err := r.htmlTpl.RenderString(ctx)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	textBody, err := r.textTpl.RenderString(ctx)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	return &Message{
		Subject: r.Subject(p),
		HTML:    htmlBody,
		Text:    strings.TrimSpace(textBody) + "\n",
	}, nil
}

// TemplateParams builds the provider-hosted-template parameter map. The
// payload blocks are passed through verbatim alongside flattened params the
// template references directly.
func (r *Renderer) TemplateParams(p *domain.DigestPayload, unsubscribeURL string) (map[string]interface{}, error) {
	ctx, err := payloadContext(p)
	if err != nil {
		return nil, err
	}

	tags := collectTags(p)
	params := map[string]interface{}{
		"subject":         r.Subject(p),
		"tags":            tags,
		"ai_summary":      p.AISummary,
		"login_url":       r.loginURL,
		"unsubscribe_url": unsubscribeURL,
	}
	for k, v := range ctx {
		params[k] = v
	}

	return map[string]interface{}{
		"params":           params,
		"user":             ctx["user"],
		"sections":         ctx["sections"],
		"activity_summary": ctx["activity_summary"],
		"metadata":         ctx["metadata"],
	}, nil
}

// payloadContext converts the typed payload into the generic map Liquid
// renders against, going through JSON so field names match the wire shape.
func payloadContext(p *domain.DigestPayload) (map[string]interface{}, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var ctx map[string]interface{}
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return ctx, nil
}

// collectTags gathers the distinct tags across highlight and more-content
// items, preserving first-seen order.
func collectTags(p *domain.DigestPayload) []string {
	seen := map[string]bool{}
	var out []string
	add := func(tags []string) {
		for _, t := range tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	for _, h := range p.Sections.Highlights {
		add(h.Tags)
	}
	for _, m := range p.Sections.MoreContent {
		add(m.Tags)
	}
	return out
}
