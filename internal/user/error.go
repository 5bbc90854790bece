package user

import "errors"

var (
	ErrInvalidUser        = errors.New("invalid signup details")
	ErrUserExists         = errors.New("username or email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username, email or password")

	pgUniqueViolation = "23505"
)
