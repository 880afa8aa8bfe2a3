package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/questspace/digest-service/internal/domain"
)

// GetUserActivity returns the insights and stacks the user created or updated
// inside [start, end). Both timestamps count as activity so edits to older
// items surface in the digest.
func (r *Repo) GetUserActivity(ctx context.Context, userID string, start, end time.Time) ([]domain.Insight, []domain.Stack, error) {
	insights, err := r.getInsights(ctx, userID, start, end)
	if err != nil {
		return nil, nil, err
	}
	stacks, err := r.getStacks(ctx, userID, start, end)
	if err != nil {
		return nil, nil, err
	}
	return insights, stacks, nil
}

func (r *Repo) getInsights(ctx context.Context, userID string, start, end time.Time) ([]domain.Insight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(title,''), COALESCE(description,''),
		       COALESCE(url,''), COALESCE(image_url,''), COALESCE(tags, '{}'),
		       COALESCE(summary,''), COALESCE(thought,''), created_at, updated_at
		FROM insights
		WHERE user_id = $1
		  AND ((created_at >= $2 AND created_at < $3) OR (updated_at >= $2 AND updated_at < $3))
		ORDER BY created_at DESC
	`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var out []domain.Insight
	for rows.Next() {
		var i domain.Insight
		if err := rows.Scan(
			&i.ID, &i.UserID, &i.Title, &i.Description,
			&i.URL, &i.ImageURL, pq.Array(&i.Tags),
			&i.Summary, &i.Thought, &i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *Repo) getStacks(ctx context.Context, userID string, start, end time.Time) ([]domain.Stack, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, COALESCE(s.name,''), COALESCE(s.description,''),
		       (SELECT COUNT(*) FROM stack_items si WHERE si.stack_id = s.id),
		       s.created_at, s.updated_at
		FROM stacks s
		WHERE s.user_id = $1
		  AND ((s.created_at >= $2 AND s.created_at < $3) OR (s.updated_at >= $2 AND s.updated_at < $3))
		ORDER BY s.updated_at DESC
	`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var out []domain.Stack
	for rows.Next() {
		var s domain.Stack
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Name, &s.Description,
			&s.ItemCount, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
