package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/questspace/digest-service/internal/service/digest"
)

// MintUnsubscribeToken returns the user's stable unsubscribe token, creating
// one on first use. Reusing the token keeps old emails' unsubscribe links
// working indefinitely.
func (r *Repo) MintUnsubscribeToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}

	var token string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO unsubscribe_tokens (token, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = unsubscribe_tokens.user_id
		RETURNING token
	`, hex.EncodeToString(buf), userID).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return token, nil
}

func (r *Repo) ResolveUnsubscribeToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM unsubscribe_tokens WHERE token = $1`,
		token,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", digest.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve token: %w", err)
	}
	return userID, nil
}
