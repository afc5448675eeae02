package domain

import "time"

// Session is the ephemeral record backing one issued access-token
// session. A live session is required for any access token carrying the
// matching SessionID; deleting it invalidates those tokens immediately,
// independent of JWT expiry.
type Session struct {
	UserID       int64     `json:"user_id"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	MFAVerified  bool      `json:"mfa_verified"`
}
