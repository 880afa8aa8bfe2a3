package domain

import "time"

// Insight is a single captured item (link, note, or highlight) from the
// user's week. Read-only for the digest pipeline.
type Insight struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	URL         string    `json:"url" db:"url"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	Tags        []string  `json:"tags" db:"tags"`
	Summary     string    `json:"summary" db:"summary"`
	Thought     string    `json:"thought" db:"thought"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Stack is a user-curated collection of insights.
type Stack struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ItemCount   int       `json:"item_count" db:"item_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TouchedWithin reports whether the insight was created or updated inside
// [start, end). Activity windows match on either timestamp.
func (i *Insight) TouchedWithin(start, end time.Time) bool {
	return inWindow(i.CreatedAt, start, end) || inWindow(i.UpdatedAt, start, end)
}

// TouchedWithin reports whether the stack was created or updated inside
// [start, end).
func (s *Stack) TouchedWithin(start, end time.Time) bool {
	return inWindow(s.CreatedAt, start, end) || inWindow(s.UpdatedAt, start, end)
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
