package crcon

import (
	"strings"
	"sync"
)

// Session holds one server's control API location, credentials and the
// token obtained from the login endpoint.
//
// All sections of a server share one Session, so token access is guarded.
// Two sections may race to log in again after a token is cleared; either
// token is valid for the same credentials.
type Session struct {
	Server   string
	BaseURL  string
	Username string
	Password string

	mu     sync.Mutex
	token  string
	logins int
}

func NewSession(server, baseURL, username, password string) *Session {
	return &Session{
		Server:   server,
		BaseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Username: username,
		Password: password,
	}
}

// Token returns the current token ("" when a login is required).
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Logins reports how many successful logins this session performed.
func (s *Session) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.logins++
	s.mu.Unlock()
}

// invalidate clears the token only if it is still the one that failed, so a
// fresh token from a concurrent login is kept.
func (s *Session) invalidate(failed string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != failed {
		return false
	}
	s.token = ""
	return true
}

func (s *Session) endpointURL(endpoint string) string {
	return s.BaseURL + APIPrefix + endpoint
}
