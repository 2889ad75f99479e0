package backends

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oxsecrets/oxsecrets/internal/config"
	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// Factory constructs a backend on first use, so unused backends never touch
// their credentials or the network.
type Factory func() secrets.Backend

// Registry owns one resolution server per backend mode. Servers are created
// lazily and shared, so all lookups against a mode go through the same cache.
type Registry struct {
	settings *config.Settings
	logger   *logging.Logger

	mu        sync.Mutex
	factories map[secrets.Mode]Factory
	servers   map[secrets.Mode]*secrets.Server
}

// NewRegistry creates a registry with every built-in backend registered and
// configured from settings.
func NewRegistry(settings *config.Settings, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.New(false, false)
	}
	r := &Registry{
		settings:  settings,
		logger:    logger,
		factories: make(map[secrets.Mode]Factory),
		servers:   make(map[secrets.Mode]*secrets.Server),
	}
	r.Register(secrets.ModeFile, func() secrets.Backend {
		return NewFileBackend(settings.File, logger)
	})
	r.Register(secrets.ModeEnv, func() secrets.Backend {
		return NewEnvBackend(settings.Prefix, logger)
	})
	r.Register(secrets.ModeKeyring, func() secrets.Backend {
		return NewKeyringBackend(settings.Prefix, logger)
	})
	r.Register(secrets.ModeAWS, func() secrets.Backend {
		return NewAWSBackend(settings.AWSProfile, logger)
	})
	r.Register(secrets.ModeGCP, func() secrets.Backend {
		return NewGCPBackend(settings.Cloud.GCPProject, logger)
	})
	r.Register(secrets.ModeAzure, func() secrets.Backend {
		return NewAzureBackend(settings.Cloud.AzureVaultURL, logger)
	})
	return r
}

// Register adds or replaces the factory for a mode.
func (r *Registry) Register(mode secrets.Mode, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[mode] = factory
	delete(r.servers, mode)
}

// canonicalMode folds legacy aliases onto the modes they name.
func canonicalMode(mode string) secrets.Mode {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "fss", "file":
		return secrets.ModeFile
	case "evs", "env":
		return secrets.ModeEnv
	default:
		return secrets.Mode(strings.ToLower(strings.TrimSpace(mode)))
	}
}

// Server returns the shared resolution server for the named mode, creating
// it on first use. An empty mode selects the configured default.
func (r *Registry) Server(mode string) (*secrets.Server, error) {
	if mode == "" {
		mode = r.settings.Mode
	}
	canonical := canonicalMode(mode)

	r.mu.Lock()
	defer r.mu.Unlock()
	if server, ok := r.servers[canonical]; ok {
		return server, nil
	}
	factory, ok := r.factories[canonical]
	if !ok {
		return nil, &secrets.NotConfiguredError{Mode: mode}
	}

	rewrite, err := r.settings.RewriteRule()
	if err != nil {
		return nil, err
	}
	opts := []secrets.ServerOption{
		secrets.WithPrefix(r.settings.Prefix),
		secrets.WithLogger(r.logger),
	}
	if rewrite != nil {
		opts = append(opts, secrets.WithRewriteRule(rewrite))
	}
	server := secrets.NewServer(factory(), opts...)
	r.servers[canonical] = server
	return server, nil
}

// Default returns the server for the configured default mode.
func (r *Registry) Default() (*secrets.Server, error) {
	return r.Server("")
}

// Modes lists the registered backend modes, sorted.
func (r *Registry) Modes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	modes := make([]string, 0, len(r.factories))
	for mode := range r.factories {
		modes = append(modes, string(mode))
	}
	sort.Strings(modes)
	return modes
}

// Lookup resolves a serialized secret reference: the mode field picks the
// server, the category and params carry through to the lookup.
func (r *Registry) Lookup(ctx context.Context, info secrets.SecretInfo, opts ...secrets.Option) (string, error) {
	server, err := r.Server(info.Mode)
	if err != nil {
		return "", err
	}
	callOpts := []secrets.Option{
		secrets.WithCategory(info.Category),
		secrets.WithParams(info.ParamMap()),
	}
	callOpts = append(callOpts, opts...)
	return server.GetSecret(ctx, info.Name, callOpts...)
}
