package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/service/digest"
)

const preferenceColumns = `user_id, weekly_digest_enabled, preferred_day, preferred_hour,
       timezone, no_activity_policy, created_at, updated_at`

func scanPreferences(row interface{ Scan(...interface{}) error }) (*domain.EmailPreferences, error) {
	p := &domain.EmailPreferences{}
	err := row.Scan(
		&p.UserID, &p.WeeklyDigestEnabled, &p.PreferredDay, &p.PreferredHour,
		&p.Timezone, &p.NoActivityPolicy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repo) GetPreferences(ctx context.Context, userID string) (*domain.EmailPreferences, error) {
	p, err := scanPreferences(r.db.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM email_preferences
		WHERE user_id = $1
	`, userID))
	if err == sql.ErrNoRows {
		return nil, digest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

func (r *Repo) CreateDefaultPreferences(ctx context.Context, userID string) (*domain.EmailPreferences, error) {
	d := domain.DefaultPreferences(userID)
	p, err := scanPreferences(r.db.QueryRowContext(ctx, `
		INSERT INTO email_preferences
			(user_id, weekly_digest_enabled, preferred_day, preferred_hour,
			 timezone, no_activity_policy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET updated_at = email_preferences.updated_at
		RETURNING `+preferenceColumns+`
	`, d.UserID, d.WeeklyDigestEnabled, d.PreferredDay, d.PreferredHour,
		d.Timezone, d.NoActivityPolicy))
	if err != nil {
		return nil, fmt.Errorf("create default preferences: %w", err)
	}
	return p, nil
}

func (r *Repo) UpdatePreferences(ctx context.Context, userID string, u domain.PreferencesUpdate) error {
	b := newSetBuilder()
	if u.WeeklyDigestEnabled != nil {
		b.add("weekly_digest_enabled", *u.WeeklyDigestEnabled)
	}
	if u.PreferredDay != nil {
		b.add("preferred_day", *u.PreferredDay)
	}
	if u.PreferredHour != nil {
		b.add("preferred_hour", *u.PreferredHour)
	}
	if u.Timezone != nil {
		b.add("timezone", *u.Timezone)
	}
	if u.NoActivityPolicy != nil {
		b.add("no_activity_policy", *u.NoActivityPolicy)
	}
	if len(b.sets) == 0 {
		return nil
	}
	b.raw("updated_at = NOW()")

	q := fmt.Sprintf("UPDATE email_preferences SET %s WHERE user_id = $%d", joinComma(b.sets), b.idx)
	b.args = append(b.args, userID)

	res, err := r.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return digest.ErrNotFound
	}
	return nil
}

func (r *Repo) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p := &domain.UserProfile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(email,''), COALESCE(first_name,''),
		       COALESCE(nickname,''), COALESCE(username,''), COALESCE(is_admin, false)
		FROM users
		WHERE id = $1
	`, userID).Scan(&p.UserID, &p.Email, &p.FirstName, &p.Nickname, &p.Username, &p.IsAdmin)
	if err == sql.ErrNoRows {
		return nil, digest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return p, nil
}

// GetSendableUsers joins profiles onto enabled preferences. Users without an
// email address are filtered here so the sweep never sees them.
func (r *Repo) GetSendableUsers(ctx context.Context) ([]digest.SendableUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.email, COALESCE(u.first_name,''), COALESCE(u.nickname,''),
		       COALESCE(u.username,''), COALESCE(u.is_admin, false),
		       p.weekly_digest_enabled, p.preferred_day, p.preferred_hour,
		       p.timezone, p.no_activity_policy, p.created_at, p.updated_at
		FROM email_preferences p
		JOIN users u ON u.id = p.user_id
		WHERE p.weekly_digest_enabled = true
		  AND u.email IS NOT NULL AND u.email <> ''
		ORDER BY u.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sendable users: %w", err)
	}
	defer rows.Close()

	var out []digest.SendableUser
	for rows.Next() {
		var su digest.SendableUser
		if err := rows.Scan(
			&su.Profile.UserID, &su.Profile.Email, &su.Profile.FirstName,
			&su.Profile.Nickname, &su.Profile.Username, &su.Profile.IsAdmin,
			&su.Prefs.WeeklyDigestEnabled, &su.Prefs.PreferredDay, &su.Prefs.PreferredHour,
			&su.Prefs.Timezone, &su.Prefs.NoActivityPolicy, &su.Prefs.CreatedAt, &su.Prefs.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sendable user: %w", err)
		}
		su.Prefs.UserID = su.Profile.UserID
		out = append(out, su)
	}
	return out, rows.Err()
}
