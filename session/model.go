package session

// Session is the server-side session record. It carries a snapshot of the
// identity as known at login (or last refresh); the engine does not re-fetch
// the user record on every guarded request, so a status change becomes
// visible only when the session is re-established.
type Session struct {
	SessionID string   `json:"sid"`
	UserID    string   `json:"uid"`
	Username  string   `json:"un,omitempty"`
	Roles     []string `json:"r,omitempty"`

	// Status mirrors the account status at session-creation time.
	Status uint8 `json:"st"`

	CreatedAt int64 `json:"ca"`
	ExpiresAt int64 `json:"ea"`
}
