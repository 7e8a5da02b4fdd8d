package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrIdentityNotFound is returned when no auth_users row matches.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityExists is returned when an email is already registered.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrUsernameTaken is returned when a username differs only in case from an existing admin.
	ErrUsernameTaken = errors.New("admin username already taken (usernames are case-insensitive)")
	// ErrUsernameRequired is returned when provisioning without a username.
	ErrUsernameRequired = errors.New("username is required")
)
