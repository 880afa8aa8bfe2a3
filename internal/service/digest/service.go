package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/questspace/digest-service/internal/content"
	"github.com/questspace/digest-service/internal/dispatch"
	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/logger"
	"github.com/questspace/digest-service/internal/render"
	"github.com/questspace/digest-service/internal/schedule"
)

// Dispatcher sends one rendered digest. Satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, msg *dispatch.OutboundEmail) (*dispatch.SendResult, error)
}

// Summarizer produces the optional AI recap. Satisfied by *summary.Enricher.
type Summarizer interface {
	Summarize(ctx context.Context, userID string, insights []domain.Insight) string
}

// Config holds the orchestrator knobs.
type Config struct {
	MaxRetries         int
	BatchSize          int
	DryRun             bool
	InterBatchDelay    time.Duration
	PerUserDelay       time.Duration
	StaleAfter         time.Duration
	UnsubscribeBaseURL string
}

// Service runs the weekly digest pipeline. All public methods are safe for
// concurrent use if the repository is concurrency-safe.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	summarizer Summarizer
	assembler  *content.Assembler
	renderer   *render.Renderer
	cfg        Config
}

// NewService creates the digest orchestrator.
func NewService(repo Repository, dispatcher Dispatcher, summarizer Summarizer,
	assembler *content.Assembler, renderer *render.Renderer, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		summarizer: summarizer,
		assembler:  assembler,
		renderer:   renderer,
		cfg:        cfg,
	}
}

// SweepOptions controls one sweep invocation. A zero Now means time.Now.
type SweepOptions struct {
	Now    time.Time
	Force  bool
	DryRun bool
}

// SendOptions controls a single-user send.
type SendOptions struct {
	Now           time.Time
	Force         bool
	DryRun        bool
	EmailOverride string
}

// RunSweep processes every eligible user in batches with bounded fan-out.
// Per-user failures are aggregated, never propagated; only a failure to list
// users fails the sweep itself.
func (s *Service) RunSweep(ctx context.Context, opts SweepOptions) *SweepResult {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	dryRun := opts.DryRun || s.cfg.DryRun

	result := &SweepResult{Success: true, DryRun: dryRun, StartedAt: now}

	users, err := s.repo.GetSendableUsers(ctx)
	if err != nil {
		logger.Error("Sweep aborted: cannot list sendable users", "error", err.Error())
		result.Success = false
		result.Error = err.Error()
		return result
	}
	logger.Info("Sweep started", "users", fmt.Sprintf("%d", len(users)), "force", fmt.Sprintf("%v", opts.Force), "dry_run", fmt.Sprintf("%v", dryRun))

	var mu sync.Mutex
	record := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		result.Processed++
		switch o.Status {
		case OutcomeSent:
			result.Sent++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s (%s)", o.UserID, o.Reason, o.Error))
		}
	}

	for start := 0; start < len(users); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(users) {
			end = len(users)
		}

		var wg sync.WaitGroup
		for i, u := range users[start:end] {
			// Stagger task launches so the provider sees a ramp within the
			// batch, not all users at once.
			if i > 0 && s.cfg.PerUserDelay > 0 {
				select {
				case <-time.After(s.cfg.PerUserDelay):
				case <-ctx.Done():
				}
			}
			wg.Add(1)
			go func(u SendableUser) {
				defer wg.Done()
				record(s.processUser(ctx, u, now, opts.Force, dryRun))
			}(u)
		}
		wg.Wait()

		// Pace between batches so the provider and DB see a ramp, not a spike.
		if end < len(users) && s.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(s.cfg.InterBatchDelay):
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				result.Duration = time.Since(now)
				return result
			}
		}
	}

	result.Duration = time.Since(now)
	logger.Info("Sweep finished",
		"processed", fmt.Sprintf("%d", result.Processed),
		"sent", fmt.Sprintf("%d", result.Sent),
		"skipped", fmt.Sprintf("%d", result.Skipped),
		"failed", fmt.Sprintf("%d", result.Failed))
	return result
}

// SendToUser runs the state machine for one user, outside the sweep.
func (s *Service) SendToUser(ctx context.Context, userID string, opts SendOptions) Outcome {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	profile, err := s.repo.GetUserProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return failed(userID, "", ReasonMissingProfile, ErrMissingProfile.Error())
		}
		return failed(userID, "", ReasonUnexpected, err.Error())
	}
	if opts.EmailOverride != "" {
		profile.Email = opts.EmailOverride
	}

	prefs, err := s.ensurePreferences(ctx, userID)
	if err != nil {
		return failed(userID, "", ReasonUnexpected, err.Error())
	}

	return s.processUser(ctx, SendableUser{Profile: *profile, Prefs: *prefs}, now, opts.Force, opts.DryRun || s.cfg.DryRun)
}

// processUser is the per-user state machine described by the digest record
// lifecycle: queued, rendered, sent, with failed re-entry until retries are
// exhausted.
func (s *Service) processUser(ctx context.Context, u SendableUser, now time.Time, force, dryRun bool) (out Outcome) {
	userID := u.Profile.UserID
	var claimedID string
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Digest task panicked", "user_id", userID, "panic", fmt.Sprintf("%v", r))
			// A claimed record must not stay in-flight, or every later
			// sweep would skip it as in_progress.
			if claimedID != "" {
				s.markFailed(ctx, claimedID, fmt.Sprintf("panic: %v", r), true)
			}
			out = failed(userID, claimedID, ReasonUnexpected, fmt.Sprintf("panic: %v", r))
		}
	}()

	if u.Profile.Email == "" {
		return failed(userID, "", ReasonMissingProfile, "user has no email address")
	}

	prefs := u.Prefs
	prefs.Normalize()

	if !force && !schedule.ShouldSendNow(&prefs, now, true) {
		return skipped(userID, ReasonNotSendTime)
	}

	weekStart := schedule.WeekStartDate(now, prefs.Timezone)

	existing, err := s.repo.GetDigestByUserWeek(ctx, userID, weekStart)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return failed(userID, "", ReasonUnexpected, err.Error())
	}
	if existing != nil && !force {
		stale := existing.InProgress() && now.Sub(existing.UpdatedAt) >= s.cfg.StaleAfter
		switch {
		case existing.IsTerminal():
			return skipped(userID, ReasonAlreadySent)
		case existing.InProgress() && !stale:
			return skipped(userID, ReasonInProgress)
		case stale:
			// The previous attempt died mid-flight without reaching a
			// terminal state. Reclaim the record so the week is not lost.
			logger.Warn("Reclaiming stale in-flight digest",
				"user_id", userID, "digest_id", existing.ID, "status", string(existing.Status))
			s.markFailed(ctx, existing.ID, "reclaimed stale in-flight record", true)
			if existing.RetryCount+1 >= s.cfg.MaxRetries {
				return skipped(userID, ReasonRetriesExhausted)
			}
		case existing.RetryCount >= s.cfg.MaxRetries:
			return skipped(userID, ReasonRetriesExhausted)
		}
	}

	digest, err := s.repo.UpsertDigest(ctx, userID, weekStart, domain.DigestQueued)
	if err != nil {
		return failed(userID, "", ReasonUnexpected, err.Error())
	}
	claimedID = digest.ID
	// A concurrent sweep may have won the upsert race; only one writer
	// proceeds past an in-flight or terminal record.
	if !force && digest.ID != "" && existing == nil && digest.Status != domain.DigestQueued {
		if digest.IsTerminal() {
			return skipped(userID, ReasonAlreadySent)
		}
		if digest.Status == domain.DigestRendered {
			return skipped(userID, ReasonInProgress)
		}
	}

	bounds := schedule.Boundaries(now, prefs.Timezone)
	insights, stacks, err := s.repo.GetUserActivity(ctx, userID, bounds.PrevWeekStart, bounds.PrevWeekEnd)
	if err != nil {
		s.markFailed(ctx, digest.ID, err.Error(), true)
		return failed(userID, digest.ID, ReasonUnexpected, err.Error())
	}

	payload := s.assembler.Build(&u.Profile, &prefs, insights, stacks, bounds, now)
	if payload.Metadata.Error {
		s.markFailed(ctx, digest.ID, payload.Metadata.Reason, true)
		return failed(userID, digest.ID, ReasonContentFailed, payload.Metadata.Reason)
	}

	payloadJSON, _ := json.Marshal(payload)

	if payload.SkipSending() && !force {
		s.finalize(ctx, digest.ID, domain.MessageIDSkipped, payloadJSON)
		return Outcome{UserID: userID, Status: OutcomeSkipped, Reason: ReasonNoActivitySkip, DigestID: digest.ID, MessageID: domain.MessageIDSkipped}
	}

	if len(insights) > 0 && s.summarizer != nil {
		payload.AISummary = s.summarizer.Summarize(ctx, userID, insights)
		payloadJSON, _ = json.Marshal(payload)
	}

	token, err := s.repo.MintUnsubscribeToken(ctx, userID)
	if err != nil {
		s.markFailed(ctx, digest.ID, err.Error(), true)
		return failed(userID, digest.ID, ReasonUnexpected, err.Error())
	}
	unsubURL := s.cfg.UnsubscribeBaseURL + "/unsubscribe?token=" + token

	msg, err := s.renderer.Render(payload, unsubURL)
	if err != nil {
		s.markFailed(ctx, digest.ID, "render_failed: "+err.Error(), true)
		return failed(userID, digest.ID, ReasonRenderFailed, err.Error())
	}
	params, err := s.renderer.TemplateParams(payload, unsubURL)
	if err != nil {
		s.markFailed(ctx, digest.ID, "render_failed: "+err.Error(), true)
		return failed(userID, digest.ID, ReasonRenderFailed, err.Error())
	}

	rendered := domain.DigestRendered
	if err := s.repo.UpdateDigest(ctx, digest.ID, domain.DigestUpdate{Status: &rendered, Payload: payloadJSON}); err != nil {
		return failed(userID, digest.ID, ReasonUnexpected, err.Error())
	}

	if dryRun {
		s.finalize(ctx, digest.ID, domain.MessageIDDryRun, payloadJSON)
		logger.Info("Dry-run digest recorded", "user_id", userID, "digest_id", digest.ID)
		return sent(userID, digest.ID, domain.MessageIDDryRun, ReasonDryRun)
	}

	res, err := s.dispatcher.Send(ctx, &dispatch.OutboundEmail{
		UserID:         userID,
		To:             u.Profile.Email,
		ToName:         u.Profile.DisplayName(),
		Subject:        msg.Subject,
		HTMLContent:    msg.HTML,
		TextContent:    msg.Text,
		TemplateParams: params,
		UnsubscribeURL: unsubURL,
	})
	if err != nil {
		transient := dispatch.Transient(err)
		s.markFailed(ctx, digest.ID, err.Error(), transient)
		if errors.Is(err, dispatch.ErrSuppressed) {
			return failed(userID, digest.ID, ReasonSuppressed, err.Error())
		}
		return failed(userID, digest.ID, ReasonSendFailed, err.Error())
	}

	s.finalize(ctx, digest.ID, res.MessageID, payloadJSON)
	logger.Info("Digest sent", "user_id", userID, "email", u.Profile.Email, "message_id", res.MessageID)
	return sent(userID, digest.ID, res.MessageID, ReasonEmailSent)
}

// markFailed transitions a record to failed. Only transient failures consume
// a retry; permanent ones leave the counter where it is.
func (s *Service) markFailed(ctx context.Context, digestID, errMsg string, transient bool) {
	st := domain.DigestFailed
	if err := s.repo.UpdateDigest(ctx, digestID, domain.DigestUpdate{
		Status:         &st,
		Error:          &errMsg,
		IncrementRetry: transient,
	}); err != nil {
		logger.Error("Failed to record digest failure", "digest_id", digestID, "error", err.Error())
	}
}

func (s *Service) finalize(ctx context.Context, digestID, messageID string, payload []byte) {
	st := domain.DigestSent
	if err := s.repo.UpdateDigest(ctx, digestID, domain.DigestUpdate{
		Status:    &st,
		MessageID: &messageID,
		Payload:   payload,
	}); err != nil {
		logger.Error("Failed to finalize digest", "digest_id", digestID, "error", err.Error())
	}
}

// Preview renders the digest a user would receive right now without writing
// any state.
func (s *Service) Preview(ctx context.Context, userID string) (*render.Message, error) {
	profile, err := s.repo.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.ensurePreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	bounds := schedule.Boundaries(now, prefs.Timezone)
	insights, stacks, err := s.repo.GetUserActivity(ctx, userID, bounds.PrevWeekStart, bounds.PrevWeekEnd)
	if err != nil {
		return nil, err
	}

	payload := s.assembler.Build(profile, prefs, insights, stacks, bounds, now)
	if len(insights) > 0 && s.summarizer != nil {
		payload.AISummary = s.summarizer.Summarize(ctx, userID, insights)
	}
	return s.renderer.Render(payload, s.cfg.UnsubscribeBaseURL+"/unsubscribe?token=preview")
}

// GetPreferences returns a user's preferences, creating the defaults on
// first read.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*domain.EmailPreferences, error) {
	return s.ensurePreferences(ctx, userID)
}

// UpdatePreferences applies a partial preference update.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, u domain.PreferencesUpdate) (*domain.EmailPreferences, error) {
	if _, err := s.ensurePreferences(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePreferences(ctx, userID, u); err != nil {
		return nil, err
	}
	return s.repo.GetPreferences(ctx, userID)
}

func (s *Service) ensurePreferences(ctx context.Context, userID string) (*domain.EmailPreferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.repo.CreateDefaultPreferences(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

// Unsubscribe disables the weekly digest for the token's user and records
// the suppression. Idempotent: a second call with the same token succeeds.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	userID, err := s.repo.ResolveUnsubscribeToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	// Only the preference flag is touched here. Re-enabling through the
	// preferences API restores eligibility; suppression is reserved for
	// provider-reported unsubscribes, which cannot be undone by the app.
	disabled := false
	if err := s.repo.UpdatePreferences(ctx, userID, domain.PreferencesUpdate{WeeklyDigestEnabled: &disabled}); err != nil {
		return err
	}

	logger.Info("User unsubscribed from weekly digest", "user_id", userID)
	return nil
}

// Stats returns digest and delivery aggregates for the trailing window.
func (s *Service) Stats(ctx context.Context, days int) (*domain.DigestStats, *domain.DeliveryStats, error) {
	if days <= 0 {
		days = 7
	}
	ds, err := s.repo.DigestStats(ctx, days)
	if err != nil {
		return nil, nil, err
	}
	es, err := s.repo.DeliveryStats(ctx, days)
	if err != nil {
		return nil, nil, err
	}
	return ds, es, nil
}
