package commands

import (
	"fmt"
	"strings"

	"github.com/oxsecrets/oxsecrets/internal/backends"
	"github.com/oxsecrets/oxsecrets/internal/config"
	oxerrors "github.com/oxsecrets/oxsecrets/internal/errors"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// parseLoaderParams parses repeated --loader key/value flags. The key and
// value are separated by the first slash, so values may contain slashes
// (region/us-east-1, filename//tmp/secrets.csv).
func parseLoaderParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "/")
		if !ok || key == "" {
			return nil, oxerrors.ConfigError{
				Field:      "loader",
				Value:      pair,
				Message:    "loader parameters are key/value pairs separated by the first slash",
				Suggestion: "Pass --loader profile/ci or --loader filename//tmp/secrets.csv",
			}
		}
		params[key] = value
	}
	return params, nil
}

// newRegistry loads the settings and builds the backend registry. Every
// command goes through here, so the settings file is only parsed once.
func newRegistry(cfg *config.Config) (*backends.Registry, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return backends.NewRegistry(&cfg.Settings, cfg.Logger), nil
}

// serverFor resolves the requested mode (or the configured default) to its
// shared resolution server.
func serverFor(cfg *config.Config, mode string) (*secrets.Server, error) {
	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return registry.Server(mode)
}

// describeFailure keeps secret material and backend internals out of
// routine error output. With --verbose-errors the full chain is reported,
// annotated with a suggestion where one is known.
func describeFailure(cfg *config.Config, op string, err error) error {
	if cfg.VerboseErrors {
		return oxerrors.Describe(err)
	}
	return oxerrors.UserError{
		Message:    fmt.Sprintf("Failed to %s", op),
		Suggestion: "Re-run with --verbose-errors for the underlying cause",
		Err:        err,
	}
}

// resolveOptions translates the shared command flags into call options.
func resolveOptions(category string, noEnv bool, serviceName string, params map[string]string) []secrets.Option {
	opts := []secrets.Option{secrets.WithCategory(category)}
	if noEnv {
		opts = append(opts, secrets.WithoutEnv())
	}
	if serviceName != "" {
		opts = append(opts, secrets.WithServiceName(serviceName))
	}
	if len(params) > 0 {
		opts = append(opts, secrets.WithParams(params))
	}
	return opts
}
