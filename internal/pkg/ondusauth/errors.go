package ondusauth

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies authentication failures
type ErrorKind int

const (
	KindActionURLNotFound ErrorKind = iota + 1
	KindLoginPageUnreachable
	KindCredentialsRejected
	KindTokenExchangeFailed
	KindRefreshFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindActionURLNotFound:
		return "login form action not found"
	case KindLoginPageUnreachable:
		return "login page unreachable"
	case KindCredentialsRejected:
		return "credentials rejected"
	case KindTokenExchangeFailed:
		return "token exchange failed"
	case KindRefreshFailed:
		return "token refresh failed"
	}

	return "authentication failed"
}

// Sentinels for errors.Is; any AuthError of the same kind matches
var (
	ErrActionURLNotFound    = &AuthError{Kind: KindActionURLNotFound}
	ErrLoginPageUnreachable = &AuthError{Kind: KindLoginPageUnreachable}
	ErrCredentialsRejected  = &AuthError{Kind: KindCredentialsRejected}
	ErrTokenExchangeFailed  = &AuthError{Kind: KindTokenExchangeFailed}
	ErrRefreshFailed        = &AuthError{Kind: KindRefreshFailed}
)

// ErrUnauthenticated is returned for a session that holds no access token
var ErrUnauthenticated = errors.New("session is not authenticated")

// AuthError is returned by the login handshake and by token refresh
type AuthError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	msg := e.Kind.String()
	if e.URL != "" {
		msg += ": " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Cause() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}
