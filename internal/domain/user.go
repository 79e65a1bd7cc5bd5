package domain

import "time"

// Role tags recognised by the API.
const (
	RoleAdmin  = "ROLE_ADMIN"
	RoleClient = "ROLE_CLIENT"
)

// User is an account that can authenticate and submit scores.
type User struct {
	ID        int64
	Name      string
	Username  string
	Password  string
	Roles     []string
	CreatedAt time.Time
}

// HasRole reports whether the user carries any of the given roles.
func (u User) HasRole(roles ...string) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
