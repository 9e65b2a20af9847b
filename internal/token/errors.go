package token

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoToken is returned by stores when no record exists. Absence is an
// expected condition, never a storage failure.
var ErrNoToken = errors.New("no token found")

// ErrNotAuthenticated is the read-path contract for "no usable credential":
// the caller should present the authorization URL rather than an opaque
// failure. Store and provider errors on the read path are downgraded to this.
var ErrNotAuthenticated = errors.New("not authenticated with Google")

// ExchangeError reports a rejected authorization-code or refresh exchange.
// The manager never retries these; a code exchange failure means the human
// must redo the consent flow.
type ExchangeError struct {
	Op  string // "exchange" or "refresh"
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth %s failed: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// PersistenceError reports a storage-layer read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("token store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MalformedCredentialError reports a stored record missing required fields.
// It is treated as equivalent to "no credential": the caller re-authorizes
// instead of crashing.
type MalformedCredentialError struct {
	Missing []string
}

func (e *MalformedCredentialError) Error() string {
	return fmt.Sprintf("credential record missing required fields: %s", strings.Join(e.Missing, ", "))
}
