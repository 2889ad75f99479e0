package backends

import (
	"context"
	"errors"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// KeyringAPI is the slice of the OS keyring used by the backend, extracted
// for test injection.
type KeyringAPI interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
}

type systemKeyring struct{}

func (systemKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (systemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// KeyringBackend stores secrets in the OS keyring (Keychain, Secret Service,
// Windows Credential Manager). Each category maps to a keyring service named
// {prefix}/{category} with the secret name as the account. The keyring
// cannot be enumerated, so loads only work for a specific name; a
// whole-category request yields nothing.
type KeyringBackend struct {
	service string
	ring    KeyringAPI
	logger  *logging.Logger
}

// KeyringOption is a functional option for configuring the keyring backend.
type KeyringOption func(*KeyringBackend)

// WithKeyring sets a custom keyring implementation (for testing).
func WithKeyring(ring KeyringAPI) KeyringOption {
	return func(k *KeyringBackend) {
		k.ring = ring
	}
}

// NewKeyringBackend creates the keyring backend. The prefix namespaces
// keyring services so unrelated tools do not collide.
func NewKeyringBackend(prefix string, logger *logging.Logger, opts ...KeyringOption) *KeyringBackend {
	if prefix == "" {
		prefix = secrets.DefaultPrefix
	}
	if logger == nil {
		logger = logging.New(false, false)
	}
	k := &KeyringBackend{
		service: strings.ToLower(prefix),
		ring:    systemKeyring{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Mode implements secrets.Backend.
func (k *KeyringBackend) Mode() secrets.Mode {
	return secrets.ModeKeyring
}

func (k *KeyringBackend) serviceFor(category string) string {
	return k.service + "/" + category
}

// Load implements secrets.Backend with a per-name keyring read. A missing
// item yields an empty snapshot, which the engine turns into NotFoundError.
func (k *KeyringBackend) Load(_ context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	snap := make(secrets.Snapshot)
	if req.Name == "" {
		k.logger.Debug("keyring backend cannot enumerate category %q", req.Category)
		return snap, nil
	}
	value, err := k.ring.Get(k.serviceFor(req.Category), req.Name)
	if errors.Is(err, keyring.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, &secrets.UnavailableError{Backend: "keyring", Err: err}
	}
	snap.Set(req.Category, req.Name, value)
	return snap, nil
}

// Store implements secrets.Writer via keyring Set calls, one per name.
func (k *KeyringBackend) Store(_ context.Context, values map[string]string, category string, _ secrets.Params) (secrets.Snapshot, error) {
	snap := make(secrets.Snapshot)
	service := k.serviceFor(category)
	for name, value := range values {
		if err := k.ring.Set(service, name, value); err != nil {
			return nil, &secrets.UnavailableError{Backend: "keyring", Err: err}
		}
		snap.Set(category, name, value)
	}
	return snap, nil
}
