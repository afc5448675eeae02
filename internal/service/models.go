package service

// TokenPair is the issued access/refresh token bundle.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginResult is returned by Login and VerifyMFA. When the account has a
// second factor enrolled, Login returns only the challenge token and the
// caller must complete VerifyMFA to obtain tokens.
type LoginResult struct {
	*TokenPair
	RequiresMFA       bool   `json:"requires_mfa"`
	MFAChallengeToken string `json:"mfa_challenge_token,omitempty"`
}

// UserInfo is the sanitized account profile returned by /auth/me.
type UserInfo struct {
	ID         int64  `json:"id"`
	OrgID      int64  `json:"org_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	MFAEnabled bool   `json:"mfa_enabled"`
}
