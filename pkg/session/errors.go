package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a
	// refresh token. There is no recovery path; the caller must force
	// re-authentication.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrSessionExpired is returned when no valid token exists and no
	// refresh token is available to obtain one.
	ErrSessionExpired = errors.New("session expired")

	// ErrRefreshFailed is returned when a refresh attempt was made but did
	// not yield a usable token.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrStoreUnavailable is returned when no credential store is configured.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// RefreshRejectedError is returned when the identity provider answers a
// refresh exchange with a non-success status.
type RefreshRejectedError struct {
	StatusCode int
	Body       string
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("refresh rejected: status %d: %s", e.StatusCode, e.Body)
}

// RefreshTransportError is returned when the refresh exchange fails at the
// network level before a response is received.
type RefreshTransportError struct {
	Err error
}

func (e *RefreshTransportError) Error() string {
	return fmt.Sprintf("refresh transport failure: %v", e.Err)
}

func (e *RefreshTransportError) Unwrap() error {
	return e.Err
}
