package backends

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// EnvBackend treats the process environment itself as the secrets store.
// Load scans every variable of the form {PREFIX}_{CATEGORY}_{NAME}, where
// the category is the first underscore-free segment after the prefix. Store
// writes variables back with os.Setenv, so stored secrets do not outlive the
// process; that is the documented behavior, not a defect.
type EnvBackend struct {
	prefix  string
	pattern *regexp.Regexp
	logger  *logging.Logger
}

// NewEnvBackend creates the env backend for the given variable prefix.
func NewEnvBackend(prefix string, logger *logging.Logger) *EnvBackend {
	if prefix == "" {
		prefix = secrets.DefaultPrefix
	}
	if logger == nil {
		logger = logging.New(false, false)
	}
	return &EnvBackend{
		prefix:  prefix,
		pattern: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + "_([^_]+)_(.+)$"),
		logger:  logger,
	}
}

// Mode implements secrets.Backend.
func (e *EnvBackend) Mode() secrets.Mode {
	return secrets.ModeEnv
}

// Load implements secrets.Backend by scanning the whole environment. The
// requested name and category are ignored: one scan populates everything the
// environment has to offer.
func (e *EnvBackend) Load(_ context.Context, _ secrets.LoadRequest) (secrets.Snapshot, error) {
	e.logger.Warn("reading secrets from environment variables with prefix %q", e.prefix)
	snap := make(secrets.Snapshot)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m := e.pattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		snap.Set(m[1], m[2], value)
	}
	return snap, nil
}

// Store implements secrets.Writer by setting {PREFIX}_{CATEGORY}_{NAME}
// variables in the current process.
func (e *EnvBackend) Store(_ context.Context, values map[string]string, category string, _ secrets.Params) (secrets.Snapshot, error) {
	snap := make(secrets.Snapshot)
	for name, value := range values {
		key := secrets.EnvVarKey(e.prefix, category, name)
		if err := os.Setenv(key, value); err != nil {
			return nil, &secrets.UnavailableError{Backend: "env", Err: err}
		}
		snap.Set(category, name, value)
	}
	return snap, nil
}
