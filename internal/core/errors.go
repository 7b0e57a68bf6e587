package core

import "errors"

var (
	// ErrAuthentication means the token is missing, invalid or its user is gone.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization means the user is not a member of the room's server.
	ErrAuthorization = errors.New("not allowed")
	// ErrNotFound means the room or its server no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrPersistence wraps every failure of the external store.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnauthenticated is returned for privileged events before authenticate.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalid marks malformed or throttled client requests.
	ErrInvalid = errors.New("invalid request")
)

// Kind names the class of err for metrics and client messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrUnauthenticated):
		return "authentication"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	}
	return "internal"
}
