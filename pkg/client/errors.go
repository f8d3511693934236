package client

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedToken     = errors.New("token is malformed")
	ErrInvalidToken       = errors.New("token is invalid or expired")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrRefreshFailed      = errors.New("failed to refresh token")
	ErrMissingConfig      = errors.New("missing required configuration fields")
	ErrNotInitialized     = errors.New("client has not been initialized")
	ErrAlreadyInitialized = errors.New("client is already initialized")
)

// MissingConfigError names every required field that was empty.
type MissingConfigError struct {
	Fields []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingConfig, strings.Join(e.Fields, ", "))
}

func (e *MissingConfigError) Unwrap() error { return ErrMissingConfig }
