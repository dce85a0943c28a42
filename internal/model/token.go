package model

// SessionVerifier validates application session tokens.
type SessionVerifier interface {
	// ParseSessionToken returns the user id the session belongs to.
	ParseSessionToken(token string) (string, error)
}
