package credstore

import "errors"

// ErrNotAuthenticated is returned when no token has been stored yet.
var ErrNotAuthenticated = errors.New("no auth token stored")

// Store persists the session token between runs. The token is the only
// client-side state that survives a restart; everything else is owned by the
// directory service.
type Store interface {
	Token() (string, error)
	SaveToken(token string) error
	Clear() error
}
