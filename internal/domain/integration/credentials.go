package integration

import "context"

// CredentialSource holds the access token used by a session.
// Refreshed never mutates the receiver; it returns a new source holding the
// rotated token, or ErrCredentialsInvalid when the platform rejects the refresh.
type CredentialSource interface {
	CurrentToken() string
	Refreshed(ctx context.Context) (CredentialSource, error)
}
