package postgres

import (
	"context"
	"fmt"

	"github.com/questspace/digest-service/internal/domain"
)

func (r *Repo) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM email_suppressions WHERE email = $1 AND active = true)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check suppression: %w", err)
	}
	return exists, nil
}

func (r *Repo) AddSuppression(ctx context.Context, s *domain.Suppression) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_suppressions (email, reason, source, active, created_at, updated_at)
		VALUES ($1, $2, $3, true, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET reason = $2, source = $3, active = true, updated_at = NOW()
	`, s.Email, s.Reason, s.Source)
	if err != nil {
		return fmt.Errorf("add suppression: %w", err)
	}
	return nil
}
