package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/service/digest"
)

const digestColumns = `id, user_id, week_start, status, COALESCE(message_id,''),
       COALESCE(error,''), retry_count, payload, created_at, updated_at`

func scanDigest(row interface{ Scan(...interface{}) error }) (*domain.Digest, error) {
	d := &domain.Digest{}
	err := row.Scan(
		&d.ID, &d.UserID, &d.WeekStart, &d.Status, &d.MessageID,
		&d.Error, &d.RetryCount, &d.Payload, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Repo) GetDigestByUserWeek(ctx context.Context, userID string, weekStart time.Time) (*domain.Digest, error) {
	d, err := scanDigest(r.db.QueryRowContext(ctx, `
		SELECT `+digestColumns+`
		FROM email_digests
		WHERE user_id = $1 AND week_start = $2
	`, userID, weekStart))
	if err == sql.ErrNoRows {
		return nil, digest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get digest: %w", err)
	}
	return d, nil
}

// UpsertDigest inserts a new record for (user, week) or returns the existing
// one untouched. The unique index on (user_id, week_start) makes concurrent
// sweeps race-safe: only one insert lands, everyone reads the same row back.
func (r *Repo) UpsertDigest(ctx context.Context, userID string, weekStart time.Time, status domain.DigestStatus) (*domain.Digest, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_digests (id, user_id, week_start, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		ON CONFLICT (user_id, week_start) DO NOTHING
	`, uuid.New().String(), userID, weekStart, status)
	if err != nil {
		return nil, fmt.Errorf("upsert digest: %w", err)
	}
	return r.GetDigestByUserWeek(ctx, userID, weekStart)
}

func (r *Repo) UpdateDigest(ctx context.Context, id string, u domain.DigestUpdate) error {
	b := newSetBuilder()
	if u.Status != nil {
		b.add("status", *u.Status)
	}
	if u.MessageID != nil {
		b.add("message_id", *u.MessageID)
	}
	if u.Error != nil {
		b.add("error", *u.Error)
	}
	if u.Payload != nil {
		b.add("payload", u.Payload)
	}
	if u.IncrementRetry {
		b.raw("retry_count = retry_count + 1")
	}
	if len(b.sets) == 0 {
		return nil
	}
	b.raw("updated_at = NOW()")

	q := fmt.Sprintf("UPDATE email_digests SET %s WHERE id = $%d", joinComma(b.sets), b.idx)
	b.args = append(b.args, id)

	res, err := r.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("update digest: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return digest.ErrNotFound
	}
	return nil
}

func (r *Repo) DigestStats(ctx context.Context, days int) (*domain.DigestStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM email_digests
		WHERE created_at >= NOW() - ($1 * INTERVAL '1 day')
		GROUP BY status
	`, days)
	if err != nil {
		return nil, fmt.Errorf("digest stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.DigestStats{Days: days, ByStatus: map[string]int{}}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan digest stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalDigests += count
	}
	return stats, rows.Err()
}
