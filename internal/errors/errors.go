// Package errors shapes internal failures into messages the CLI can show a
// user, with suggestions for the common misconfigurations. The core typed
// error kinds live in pkg/secrets; this package only decorates them.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// UserError is an error meant for direct display, with optional context.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError reports a bad configuration value with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// Describe wraps a resolution failure with a suggestion matched to its kind,
// so CLI users see what to do next rather than a bare error chain.
func Describe(err error) error {
	suggestion := suggestionFor(err)
	if suggestion == "" {
		return err
	}
	return UserError{
		Message:    err.Error(),
		Suggestion: suggestion,
		Err:        err,
	}
}

func suggestionFor(err error) string {
	var notConfigured *secrets.NotConfiguredError
	if errors.As(err, &notConfigured) {
		return "Run 'oxsecrets backends' to list the available modes, or set OX_SECRETS_MODE"
	}

	var notFound *secrets.NotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("Check the secret name and category, or set the %s_%s_... override variable",
			secrets.DefaultPrefix, strings.ToUpper(notFound.Category))
	}

	var unavailable *secrets.UnavailableError
	if errors.As(err, &unavailable) {
		switch unavailable.Backend {
		case "file":
			return "Check that the secrets file exists, or point OX_SECRETS_FILE at it"
		case "aws":
			return "Configure AWS credentials ('aws configure' or AWS_PROFILE) and check the region"
		case "gcp":
			return "Check GOOGLE_APPLICATION_CREDENTIALS and the configured project"
		case "azure":
			return "Check Azure credentials (az login or managed identity) and the vault URL"
		default:
			return "Check that the backing store is reachable"
		}
	}

	var unsupported *secrets.UnsupportedError
	if errors.As(err, &unsupported) {
		return "Pick a writable backend mode such as 'file' or 'env' for storing secrets"
	}

	return ""
}
