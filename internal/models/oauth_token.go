package models

import "time"

// OAuthToken is the Google Calendar grant stored per host (oauth_tokens).
type OAuthToken struct {
	Host         string     `json:"host"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	Email        string     `json:"email"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
