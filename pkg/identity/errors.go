package identity

import "errors"

var (
	// ErrUnauthenticated means the backend rejected the session (401/403).
	ErrUnauthenticated = errors.New("identity: unauthenticated")

	// ErrTransient marks failures worth retrying: network errors, 429 and 5xx.
	ErrTransient = errors.New("identity: transient failure")

	// ErrInvalidPayload means the /me response did not match the user contract.
	ErrInvalidPayload = errors.New("identity: invalid user payload")

	// ErrUnexpectedStatus covers other non-2xx responses.
	ErrUnexpectedStatus = errors.New("identity: unexpected status")
)
