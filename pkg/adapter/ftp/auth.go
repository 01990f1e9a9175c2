package ftp

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for every failed login, whatever the
// reason, so clients cannot discover user names.
var ErrInvalidCredentials = errors.New("invalid credentials")

// anonymousUsers are the conventional anonymous FTP logins.
var anonymousUsers = map[string]bool{"anonymous": true, "ftp": true}

// authenticator checks USER/PASS pairs.
type authenticator struct {
	anonymous bool
	users     map[string][]byte
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{
		anonymous: cfg.Anonymous,
		users:     make(map[string][]byte, len(cfg.Users)),
	}
	for _, u := range cfg.Users {
		a.users[u.Username] = []byte(u.PasswordHash)
	}
	return a
}

// authenticate returns the login kind ("anonymous" or "user").
func (a *authenticator) authenticate(user, pass string) (string, error) {
	if hash, ok := a.users[user]; ok {
		if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
			return "", ErrInvalidCredentials
		}
		return "user", nil
	}

	if a.anonymous && anonymousUsers[user] {
		return "anonymous", nil
	}

	return "", ErrInvalidCredentials
}
