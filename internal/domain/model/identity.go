package model

// Identity is the authenticated principal bound to a connection after a
// successful token verification. It is nil until then.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
