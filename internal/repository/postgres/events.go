package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/questspace/digest-service/internal/domain"
)

func (r *Repo) LogEmailEvent(ctx context.Context, ev *domain.EmailEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	meta, err := json.Marshal(ev.Meta)
	if err != nil {
		return fmt.Errorf("marshal event meta: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO email_events (id, message_id, event, user_id, occurred_at, meta, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NOW())
	`, ev.ID, ev.MessageID, ev.Event, ev.UserID, ev.OccurredAt, meta)
	if err != nil {
		return fmt.Errorf("log email event: %w", err)
	}
	return nil
}

// ResolveMessageUser maps a provider message id back to the user it was sent
// to, via the digest record that carried it. Unknown ids resolve to "".
func (r *Repo) ResolveMessageUser(ctx context.Context, messageID string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM email_digests WHERE message_id = $1 LIMIT 1`,
		messageID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve message user: %w", err)
	}
	return userID, nil
}

func (r *Repo) DeliveryStats(ctx context.Context, days int) (*domain.DeliveryStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event, COUNT(*)
		FROM email_events
		WHERE occurred_at >= NOW() - ($1 * INTERVAL '1 day')
		GROUP BY event
	`, days)
	if err != nil {
		return nil, fmt.Errorf("delivery stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.DeliveryStats{Days: days, ByEvent: map[string]int{}}
	for rows.Next() {
		var event string
		var count int
		if err := rows.Scan(&event, &count); err != nil {
			return nil, fmt.Errorf("scan delivery stats: %w", err)
		}
		stats.ByEvent[event] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.TotalSent = stats.ByEvent[string(domain.EventSent)]
	if stats.TotalSent > 0 {
		total := float64(stats.TotalSent)
		stats.DeliveryRate = float64(stats.ByEvent[string(domain.EventDelivered)]) / total * 100
		stats.OpenRate = float64(stats.ByEvent[string(domain.EventOpened)]) / total * 100
		stats.ClickRate = float64(stats.ByEvent[string(domain.EventClicked)]) / total * 100
		stats.BounceRate = float64(stats.ByEvent[string(domain.EventBounced)]) / total * 100
	}
	return stats, nil
}
