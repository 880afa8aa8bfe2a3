package domain

// UserProfile is the read-only slice of the account record the digest
// pipeline needs to address a user. It is resolved through the repository so
// the core never couples to the auth schema directly.
type UserProfile struct {
	UserID    string `json:"user_id" db:"user_id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	Nickname  string `json:"nickname" db:"nickname"`
	Username  string `json:"username" db:"username"`
	IsAdmin   bool   `json:"is_admin" db:"is_admin"`
}

// DisplayName returns the friendliest available name for greeting copy.
func (u *UserProfile) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Nickname != "":
		return u.Nickname
	case u.Username != "":
		return u.Username
	default:
		return "there"
	}
}
