package domain

// Session is the client-side record of an authenticated login. The three
// fields are persisted and cleared as one unit.
type Session struct {
	SessionToken string `json:"session_token"`
	UserID       ID     `json:"user_id,omitempty"`
	Username     string `json:"username"`
}

// Active reports whether the session carries both a token and a username,
// which is what a restart needs to resume in the logged-in view.
func (s Session) Active() bool {
	return s.SessionToken != "" && s.Username != ""
}

// HasToken reports whether authenticated calls can be attempted.
func (s Session) HasToken() bool {
	return s.SessionToken != ""
}
