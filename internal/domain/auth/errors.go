package auth

import "fmt"

// ErrorKind classifies a failed admin login.
type ErrorKind string

const (
	KindInvalidCredentials      ErrorKind = "invalid_credentials"
	KindVerificationUnavailable ErrorKind = "verification_unavailable"
	KindAccountDesynced         ErrorKind = "account_desynced"
	KindGrantAssignmentFailed   ErrorKind = "grant_assignment_failed"
	KindUnexpected              ErrorKind = "unexpected"
)

// User-facing messages per kind.
const (
	MsgInvalidCredentials      = "Invalid username or password"
	MsgVerificationUnavailable = "Unable to verify credentials right now. Please try again."
	MsgAccountDesynced         = "Admin account is out of sync with the identity provider. Ask an operator to reset it."
	MsgGrantAssignmentFailed   = "Could not assign admin role"
	MsgSessionUnavailable      = "Could not start admin session"
	MsgUnexpected              = "An unexpected error occurred"
)

// LoginError carries a classified login failure with its user-facing message.
type LoginError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LoginError) Unwrap() error { return e.Err }

// NewLoginError builds a LoginError using the default message for kind.
func NewLoginError(kind ErrorKind, err error) *LoginError {
	return &LoginError{Kind: kind, Message: DefaultMessage(kind), Err: err}
}

// DefaultMessage returns the user-facing message for kind.
func DefaultMessage(kind ErrorKind) string {
	switch kind {
	case KindInvalidCredentials:
		return MsgInvalidCredentials
	case KindVerificationUnavailable:
		return MsgVerificationUnavailable
	case KindAccountDesynced:
		return MsgAccountDesynced
	case KindGrantAssignmentFailed:
		return MsgGrantAssignmentFailed
	default:
		return MsgUnexpected
	}
}

// LoginResult is what AdminLogin hands back to callers. It never carries
// credential material.
type LoginResult struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// Succeeded is the result of a completed login.
func Succeeded() LoginResult { return LoginResult{Success: true} }

// Failed converts a LoginError into a failed result.
func Failed(e *LoginError) LoginResult {
	msg := e.Message
	if msg == "" {
		msg = DefaultMessage(e.Kind)
	}
	return LoginResult{Success: false, Error: msg, Kind: e.Kind}
}
