package models

// Session is built once per request and passed explicitly to every
// directory and contact-gate call. Principal is nil for anonymous visitors.
type Session struct {
	ID        string     `json:"id"`
	Principal *Principal `json:"principal,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.Principal != nil && s.Principal.UserID != ""
}

func (s Session) UserID() string {
	if s.Principal == nil {
		return ""
	}
	return s.Principal.UserID
}

func (s Session) IsAdmin() bool {
	return s.Principal.IsAdmin()
}
