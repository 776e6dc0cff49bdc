package core

import "time"

// TokenLifetime is how long a bearer token minted by the auth service stays valid.
const TokenLifetime = 7 * 24 * time.Hour

type (
	// User is the public profile of an account. It never carries the password.
	User struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		ProfileImage string `json:"profileImage,omitempty"`
	}

	// Session is an authenticated identity plus its bearer token.
	Session struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}

	// UserRecord is a User as stored server side.
	UserRecord struct {
		User
		PasswordHash string
		CreatedAt    time.Time
	}
)

// Valid reports whether the session can be used for authenticated calls.
func (s Session) Valid() bool {
	return s.Token != "" && s.User.ID != ""
}
