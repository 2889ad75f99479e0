package secrets

import "fmt"

// NotFoundError reports a secret absent after the environment, the cache and
// a single backend reload have all been exhausted. Name is empty when a whole
// category was requested.
type NotFoundError struct {
	Category string
	Name     string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("no secrets available for category %q", e.Category)
	}
	return fmt.Sprintf("secret %q not found in category %q", e.Name, e.Category)
}

// NotConfiguredError reports a requested backend mode that matches no
// registered backend.
type NotConfiguredError struct {
	Mode string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("no secret backend configured for mode %q", e.Mode)
}

// UnavailableError reports that a backend's medium could not be reached or
// read: a missing secrets file, a network failure, a cloud client that could
// not be constructed. It is distinct from NotFoundError so callers can tell
// "the secret does not exist" from "the store is unreachable".
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// FormatError reports malformed source data, such as an unrecognized file
// extension or a secret bundle that does not decode. The load attempt fails;
// it is not retried.
type FormatError struct {
	Source string
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed secret data in %s: %s", e.Source, e.Detail)
}

// UnsupportedError reports a store attempt against a backend that does not
// implement Writer.
type UnsupportedError struct {
	Backend string
	Op      string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s backend does not support %s", e.Backend, e.Op)
}
