package identity

import "errors"

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrNotSignedIn        = errors.New("no signed-in identity")
	ErrIdentityMismatch   = errors.New("identity is not the signed-in account")
	ErrUserNotFound       = errors.New("user not found")
)
