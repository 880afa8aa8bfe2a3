package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/httputil"
	"github.com/questspace/digest-service/internal/service/digest"
	"github.com/questspace/digest-service/internal/webhook"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	svc        *digest.Service
	ingestor   *webhook.Ingestor
	limiter    *webhook.RateLimiter
	webhookKey string
	cronSecret string
	startTime  time.Time
}

// NewHandlers creates the handler set. limiter may be nil.
func NewHandlers(svc *digest.Service, ingestor *webhook.Ingestor, limiter *webhook.RateLimiter, webhookSecret, cronSecret string) *Handlers {
	return &Handlers{
		svc:        svc,
		ingestor:   ingestor,
		limiter:    limiter,
		webhookKey: webhookSecret,
		cronSecret: cronSecret,
		startTime:  time.Now(),
	}
}

// HealthCheck reports liveness.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// requireCronSecret rejects sweep triggers without the shared cron secret.
// The secret rides in Authorization: Bearer or X-Cron-Secret.
func (h *Handlers) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cronSecret == "" {
			httputil.Error(w, http.StatusServiceUnavailable, "sweep trigger disabled: no cron secret configured")
			return
		}
		got := r.Header.Get("X-Cron-Secret")
		if got == "" {
			got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) != 1 {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sweepRequest struct {
	Now    string `json:"now,omitempty"`
	Force  bool   `json:"force,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// HandleSweep runs one digest sweep synchronously and returns its summary.
//
//	POST /api/digest/sweep
func (h *Handlers) HandleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.Body != nil {
		// An empty body means "sweep with defaults".
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
	}

	opts := digest.SweepOptions{Force: req.Force, DryRun: req.DryRun}
	if req.Now != "" {
		t, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid now timestamp: %v", err))
			return
		}
		opts.Now = t.UTC()
	}

	result := h.svc.RunSweep(r.Context(), opts)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	httputil.JSON(w, status, result)
}

type sendRequest struct {
	Force         bool   `json:"force,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
	EmailOverride string `json:"email_override,omitempty"`
}

// HandleSendToUser runs the digest pipeline for one user.
//
//	POST /api/digest/users/{userID}/send
func (h *Handlers) HandleSendToUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req sendRequest
	if r.Body != nil {
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
	}

	out := h.svc.SendToUser(r.Context(), userID, digest.SendOptions{
		Force:         req.Force,
		DryRun:        req.DryRun,
		EmailOverride: req.EmailOverride,
	})

	status := http.StatusOK
	if out.Status == digest.OutcomeFailed && out.Reason == digest.ReasonMissingProfile {
		status = http.StatusNotFound
	}
	httputil.JSON(w, status, out)
}

type previewResponse struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// HandlePreview renders this week's digest for a user without sending or
// writing state.
//
//	GET /api/digest/users/{userID}/preview
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	msg, err := h.svc.Preview(r.Context(), userID)
	if err != nil {
		if errors.Is(err, digest.ErrNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(msg.HTML))
		return
	}
	httputil.JSON(w, http.StatusOK, previewResponse{Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text})
}

// HandleStats returns digest and delivery aggregates.
//
//	GET /api/digest/stats?days=7
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			httputil.Error(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	digests, delivery, err := h.svc.Stats(r.Context(), days)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"digests":  digests,
		"delivery": delivery,
	})
}

// HandleGetPreferences returns a user's digest preferences, creating the
// defaults on first read.
//
//	GET /api/email/preferences/{userID}
func (h *Handlers) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	prefs, err := h.svc.GetPreferences(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, prefs)
}

// HandleUpdatePreferences applies a partial preference update.
//
//	PUT /api/email/preferences/{userID}
func (h *Handlers) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var u domain.PreferencesUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&u); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if u.PreferredDay != nil && (*u.PreferredDay < 0 || *u.PreferredDay > 6) {
		httputil.Error(w, http.StatusBadRequest, "preferred_day must be between 0 (Monday) and 6 (Sunday)")
		return
	}
	if u.PreferredHour != nil && (*u.PreferredHour < 0 || *u.PreferredHour > 23) {
		httputil.Error(w, http.StatusBadRequest, "preferred_hour must be between 0 and 23")
		return
	}
	if u.NoActivityPolicy != nil && !u.NoActivityPolicy.Valid() {
		httputil.Error(w, http.StatusBadRequest, "no_activity_policy must be skip, brief, or suggestions")
		return
	}

	prefs, err := h.svc.UpdatePreferences(r.Context(), userID, u)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, prefs)
}

// HandleUnsubscribe processes one-click unsubscribe links from digest emails.
// It answers with a plain confirmation page since the caller is a mail client.
//
//	GET /unsubscribe?token=...
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	if err := h.svc.Unsubscribe(r.Context(), token); err != nil {
		if errors.Is(err, digest.ErrInvalidToken) {
			http.Error(w, "invalid or expired unsubscribe link", http.StatusNotFound)
			return
		}
		http.Error(w, "something went wrong, please try again", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(unsubscribePage))
}

const unsubscribePage = `<!DOCTYPE html>
<html>
<head><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; max-width: 480px; margin: 80px auto; text-align: center;">
  <h1>You're unsubscribed</h1>
  <p>You won't receive the weekly digest anymore. You can re-enable it any
  time from your notification settings.</p>
</body>
</html>`
