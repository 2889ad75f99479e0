package secrets

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/internal/metrics"
)

// DefaultPrefix is the environment-variable prefix used for direct secret
// overrides and by the env backend when no other prefix is configured.
const DefaultPrefix = "OX_SECRETS"

// DefaultCategory is the category assumed when a caller does not name one.
const DefaultCategory = "root"

// RewriteRule rewrites requested categories before any lookup or load.
type RewriteRule struct {
	Pattern *regexp.Regexp
	Replace string
}

// NewRewriteRule compiles pattern into a RewriteRule.
func NewRewriteRule(pattern, replace string) (*RewriteRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RewriteRule{Pattern: re, Replace: replace}, nil
}

// Server owns the shared secret cache for one backend kind and implements
// the layered resolution protocol. Construct one Server per backend kind and
// share it across the process; the internal/backends registry does exactly
// that for the built-in modes.
//
// All methods are safe for concurrent use. The mutex guards only cache reads
// and writes; backend loads run outside it, so a slow loader never stalls
// unrelated cache hits.
type Server struct {
	backend Backend
	prefix  string
	rewrite *RewriteRule
	logger  *logging.Logger

	mu    sync.Mutex
	cache Snapshot
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPrefix overrides the environment-variable prefix.
func WithPrefix(prefix string) ServerOption {
	return func(s *Server) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRewriteRule installs a category rewrite rule. A nil rule leaves
// categories untouched.
func WithRewriteRule(rule *RewriteRule) ServerOption {
	return func(s *Server) {
		s.rewrite = rule
	}
}

// WithLogger sets the logger used for resolution tracing.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the resolution engine for the given backend.
func NewServer(backend Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend: backend,
		prefix:  DefaultPrefix,
		logger:  logging.New(false, false),
		cache:   make(Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option adjusts a single GetSecret, GetSecretDict or StoreSecrets call.
type Option func(*callConfig)

type callConfig struct {
	category    string
	allowEnv    bool
	allowReload bool
	params      Params
	serviceName string
}

func newCallConfig(opts []Option) callConfig {
	cfg := callConfig{
		category:    DefaultCategory,
		allowEnv:    true,
		allowReload: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithCategory selects the secret's category. Defaults to "root".
func WithCategory(category string) Option {
	return func(c *callConfig) {
		if category != "" {
			c.category = category
		}
	}
}

// WithoutEnv skips the environment-variable override check.
func WithoutEnv() Option {
	return func(c *callConfig) {
		c.allowEnv = false
	}
}

// WithoutReload fails a cache miss immediately instead of invoking the
// backend loader.
func WithoutReload() Option {
	return func(c *callConfig) {
		c.allowReload = false
	}
}

// WithParams passes backend-specific loader or storage parameters through to
// the backend.
func WithParams(params map[string]string) Option {
	return func(c *callConfig) {
		c.params = Params(params)
	}
}

// WithServiceName merges a service_name loader parameter, selecting between
// sub-services of a backend (for AWS: secretsmanager or ssm).
func WithServiceName(name string) Option {
	return func(c *callConfig) {
		c.serviceName = name
	}
}

// Mode reports the backend kind this server fronts.
func (s *Server) Mode() Mode {
	return s.backend.Mode()
}

// EnvKey builds the environment-variable key that overrides the given
// name/category pair: {PREFIX}_{CATEGORY}_{NAME}, upper-cased, with every
// non-alphanumeric byte folded to an underscore.
func (s *Server) EnvKey(category, name string) string {
	return EnvVarKey(s.prefix, category, name)
}

// EnvVarKey is EnvKey for an explicit prefix.
func EnvVarKey(prefix, category, name string) string {
	raw := strings.ToUpper(prefix + "_" + category + "_" + name)
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RewriteCategory applies the configured rewrite rule to category. It is a
// pure function: identity without a rule, a single regexp substitution
// otherwise. Callers of the public API never need this directly; every
// operation applies it exactly once internally.
func (s *Server) RewriteCategory(category string) string {
	if s.rewrite == nil {
		return category
	}
	return s.rewrite.Pattern.ReplaceAllString(category, s.rewrite.Replace)
}

// GetSecret resolves the named secret. Resolution order: environment
// override (unless WithoutEnv), cache, then a single backend load followed
// by one more cache lookup. A miss after the load reports NotFoundError;
// there is never a second reload within one call.
func (s *Server) GetSecret(ctx context.Context, name string, opts ...Option) (string, error) {
	cfg := newCallConfig(opts)
	category := s.RewriteCategory(cfg.category)
	mode := string(s.backend.Mode())

	if cfg.allowEnv {
		key := s.EnvKey(category, name)
		if value, ok := os.LookupEnv(key); ok {
			s.logger.Debug("secret %q resolved from environment variable %s", name, key)
			metrics.EnvHits.WithLabelValues(mode).Inc()
			return value, nil
		}
	}

	if value, ok := s.lookup(name, category); ok {
		metrics.CacheHits.WithLabelValues(mode).Inc()
		return value, nil
	}
	metrics.CacheMisses.WithLabelValues(mode).Inc()

	if !cfg.allowReload {
		return "", &NotFoundError{Category: category, Name: name}
	}

	if err := s.loadAndMerge(ctx, name, category, cfg); err != nil {
		return "", err
	}

	if value, ok := s.lookup(name, category); ok {
		return value, nil
	}
	return "", &NotFoundError{Category: category, Name: name}
}

// GetSecretDict resolves every secret in a category and returns a shallow
// copy of the category's mapping; mutating the result never affects the
// cache. The environment is not consulted, since a whole category has no
// single override variable. A category already loaded is served from cache;
// otherwise one backend load runs (unless WithoutReload, which reports
// NotFoundError for the category instead).
func (s *Server) GetSecretDict(ctx context.Context, category string, opts ...Option) (map[string]string, error) {
	cfg := newCallConfig(opts)
	category = s.RewriteCategory(category)

	s.mu.Lock()
	loaded := len(s.cache[category]) > 0
	s.mu.Unlock()

	if !loaded {
		if !cfg.allowReload {
			return nil, &NotFoundError{Category: category}
		}
		if err := s.loadAndMerge(ctx, "", category, cfg); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.cache[category]))
	for name, value := range s.cache[category] {
		out[name] = value
	}
	return out, nil
}

// StoreSecrets persists values under category through the backend and
// mirrors them into the cache so cache and medium stay consistent
// immediately after the write. Only categories already present in the cache
// are updated; a category never loaded is not retroactively cached. The
// whole read-modify-write runs under the cache mutex. Backends without
// Writer yield UnsupportedError.
func (s *Server) StoreSecrets(ctx context.Context, values map[string]string, category string, opts ...Option) error {
	writer, ok := s.backend.(Writer)
	if !ok {
		return &UnsupportedError{Backend: string(s.backend.Mode()), Op: "storing secrets"}
	}
	cfg := newCallConfig(opts)
	if category == "" {
		category = cfg.category
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := writer.Store(ctx, values, category, cfg.storeParams())
	if err != nil {
		return err
	}
	metrics.Stores.WithLabelValues(string(s.backend.Mode())).Inc()
	for cat, entries := range snap {
		inner, cached := s.cache[cat]
		if !cached {
			continue
		}
		for name, value := range entries {
			inner[name] = value
		}
	}
	return nil
}

// ClearCache forgets every cached secret for this backend kind, process
// wide. The next lookup per category triggers a fresh backend load.
func (s *Server) ClearCache() {
	s.mu.Lock()
	s.cache = make(Snapshot)
	s.mu.Unlock()
	s.logger.Debug("%s secret cache cleared", s.backend.Mode())
}

// ListSecretNames reports the names currently cached for a category, sorted.
// It never triggers a load; an unloaded category yields an empty slice.
func (s *Server) ListSecretNames(category string) []string {
	category = s.RewriteCategory(category)
	s.mu.Lock()
	names := make([]string, 0, len(s.cache[category]))
	for name := range s.cache[category] {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// lookup reads one cached value under the mutex. A loaded category that does
// not contain the name counts as a miss for the whole category: the entry is
// dropped so the next load starts fresh rather than trusting stale data.
func (s *Server) lookup(name, category string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner := s.cache[category]
	if len(inner) == 0 {
		return "", false
	}
	if value, ok := inner[name]; ok {
		return value, true
	}
	delete(s.cache, category)
	return "", false
}

// loadAndMerge runs one backend load outside the mutex and merges the result
// under it. Two concurrent misses for the same category may both get here;
// the duplicate load is accepted and the merges are last-write-wins.
func (s *Server) loadAndMerge(ctx context.Context, name, category string, cfg callConfig) error {
	req := LoadRequest{Name: name, Category: category, Params: cfg.loadParams()}
	s.logger.Debug("loading category %q from %s backend", category, s.backend.Mode())
	snap, err := s.backend.Load(ctx, req)
	if err != nil {
		metrics.LoadFailures.WithLabelValues(string(s.backend.Mode())).Inc()
		return err
	}
	metrics.Loads.WithLabelValues(string(s.backend.Mode())).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	for cat, entries := range snap {
		inner := s.cache[cat]
		if inner == nil {
			inner = make(map[string]string, len(entries))
			s.cache[cat] = inner
		}
		for n, value := range entries {
			inner[n] = value
		}
	}
	return nil
}

// loadParams clones the caller's params and folds in the service name, so
// the caller's map is never mutated.
func (c callConfig) loadParams() Params {
	params := c.params.Clone()
	if c.serviceName != "" {
		params["service_name"] = c.serviceName
	}
	return params
}

func (c callConfig) storeParams() Params {
	return c.loadParams()
}
