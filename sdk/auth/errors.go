package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ReauthHint is appended to refresh failures.
const ReauthHint = "Please re-authenticate with `ocaauth login`."

var (
	// ErrInvalidState is reported when the callback state does not match the pending authorization.
	ErrInvalidState = errors.New("invalid state")
	// ErrMissingCode is reported when the callback carries neither code nor error.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrCallbackTimeout is reported when no callback arrives in time.
	ErrCallbackTimeout = errors.New("oauth callback timeout")
	// ErrAuthorizationSuperseded is reported to a pending authorization replaced by a newer one.
	ErrAuthorizationSuperseded = errors.New("authorization superseded by a newer request")
	// ErrMissingRefreshToken is the terminal failure for oauth credentials that cannot be renewed.
	ErrMissingRefreshToken = errors.New("missing refresh token")
)

// ProviderError carries an error reported by the identity service on the redirect.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// ReauthRequiredError wraps a refresh failure the user must resolve by logging in again.
type ReauthRequiredError struct {
	Err error
}

func (e *ReauthRequiredError) Error() string {
	msg := e.Err.Error()
	if mentionsReauth(msg) {
		return msg
	}
	return fmt.Sprintf("%s. %s", strings.TrimRight(msg, ". "), ReauthHint)
}

func (e *ReauthRequiredError) Unwrap() error { return e.Err }

func mentionsReauth(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "re-authenticate") || strings.Contains(lower, "reauthenticate")
}

// withReauthHint wraps err once.
func withReauthHint(err error) error {
	if err == nil {
		return nil
	}
	var reauth *ReauthRequiredError
	if errors.As(err, &reauth) {
		return err
	}
	return &ReauthRequiredError{Err: err}
}
