package oauth2

import "errors"

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrStateMismatch      = errors.New("state mismatch: possible CSRF attack")
	ErrProviderNotFound   = errors.New("provider not registered")
)
