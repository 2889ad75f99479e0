package secrets

import "context"

// Mode identifies a backend kind. The built-in modes are registered by the
// internal/backends package; the CLI selects one via OX_SECRETS_MODE or the
// --mode flag.
type Mode string

// Built-in backend modes.
const (
	ModeFile    Mode = "file"
	ModeEnv     Mode = "env"
	ModeKeyring Mode = "keyring"
	ModeAWS     Mode = "aws"
	ModeGCP     Mode = "gcp"
	ModeAzure   Mode = "azure"
)

// Params carries backend-specific loader or storage options (filename,
// encoding, service_name, region, ...). The engine passes them through
// opaquely; each backend documents the keys it understands.
type Params map[string]string

// Clone returns a copy of p. A nil receiver yields an empty, non-nil map so
// callers can add keys without a nil check.
func (p Params) Clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Snapshot is secret data as produced by a backend load or store:
// category -> name -> value. The engine merges snapshots into its cache
// under the cache mutex; backends never touch the cache directly.
type Snapshot map[string]map[string]string

// Set inserts a value, creating the category map on first use.
func (s Snapshot) Set(category, name, value string) {
	inner := s[category]
	if inner == nil {
		inner = make(map[string]string)
		s[category] = inner
	}
	inner[name] = value
}

// LoadRequest describes one cache-population request. Name may be empty when
// a whole category is wanted (GetSecretDict); backends that can only fetch
// per name return an empty snapshot in that case.
type LoadRequest struct {
	Name     string
	Category string
	Params   Params
}

// Backend is the contract every secret source implements. Load performs the
// blocking I/O for a cache miss and returns the data to merge; it is called
// outside the cache mutex and must be safe to run redundantly. Loads for the
// same category may race under concurrent misses, so a load must be a pure
// read of the medium with no side effects beyond its return value.
type Backend interface {
	Mode() Mode
	Load(ctx context.Context, req LoadRequest) (Snapshot, error)
}

// Writer is implemented by backends that support storing secrets. Store
// persists values into the medium for the given category and returns the
// snapshot to mirror into the cache. The engine invokes Store while holding
// the cache mutex so the medium and the cache stay consistent in-process;
// concurrent writers in other processes are not coordinated.
//
// A backend without Writer is read-only: the engine reports
// UnsupportedError for store attempts.
type Writer interface {
	Store(ctx context.Context, values map[string]string, category string, params Params) (Snapshot, error)
}
