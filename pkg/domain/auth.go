package domain

// Credentials is the body of the register and login calls.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the account returned by registration.
type User struct {
	ID        ID        `json:"id,omitempty"`
	Username  string    `json:"username"`
	CreatedAt Timestamp `json:"created_at"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	SessionToken string `json:"session_token"`
	UserID       ID     `json:"user_id,omitempty"`
	Username     string `json:"username"`
}

// Session converts the login payload into the persisted session unit.
func (r LoginResponse) Session() Session {
	return Session{
		SessionToken: r.SessionToken,
		UserID:       r.UserID,
		Username:     r.Username,
	}
}
