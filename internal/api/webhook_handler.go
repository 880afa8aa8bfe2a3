package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/questspace/digest-service/internal/pkg/httputil"
	"github.com/questspace/digest-service/internal/pkg/logger"
	"github.com/questspace/digest-service/internal/webhook"
)

// HandleWebhook ingests provider delivery callbacks. The body may be a single
// event object or an array of them. Unknown event types are accepted so the
// provider never retries them.
//
//	POST /webhooks/email
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(r.Context(), r.RemoteAddr) {
		httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// Limit webhook payload to 1MB; provider batches stay well under this.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if !webhook.VerifySignature(h.webhookKey, body, r.Header.Get("X-Webhook-Signature")) {
		logger.Warn("Webhook signature mismatch", "remote", r.RemoteAddr)
		httputil.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	processed := 0
	for i := range events {
		if err := h.ingestor.ProcessEvent(r.Context(), &events[i]); err != nil {
			logger.Error("Failed to process webhook event",
				"event", events[i].Event, "message_id", events[i].MessageID, "error", err.Error())
			continue
		}
		processed++
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"processed": processed})
}

// decodeEvents accepts both the single-object and array callback shapes.
func decodeEvents(body []byte) ([]webhook.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []webhook.Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var ev webhook.Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, err
	}
	return []webhook.Event{ev}, nil
}
