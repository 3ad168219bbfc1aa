package models

// Identity is the caller as seen by the core. Authenticated is decided by
// the auth layer; the core only checks it before writing attributions.
type Identity struct {
	UserID        string `json:"user_id"`
	Authenticated bool   `json:"authenticated"`
	Staff         bool   `json:"staff,omitempty"`
}

// Anonymous is the identity of a caller without a valid token.
var Anonymous = Identity{}
