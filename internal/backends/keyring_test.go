package backends

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// fakeKeyring is an in-memory KeyringAPI keyed by service then account.
type fakeKeyring struct {
	items map[string]map[string]string
	err   error
}

func newFakeKeyring() *fakeKeyring {
	return &fakeKeyring{items: make(map[string]map[string]string)}
}

func (f *fakeKeyring) Get(service, user string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.items[service][user]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return value, nil
}

func (f *fakeKeyring) Set(service, user, password string) error {
	if f.err != nil {
		return f.err
	}
	if f.items[service] == nil {
		f.items[service] = make(map[string]string)
	}
	f.items[service][user] = password
	return nil
}

func TestKeyringBackendLoadByName(t *testing.T) {
	ring := newFakeKeyring()
	require.NoError(t, ring.Set("ox_secrets/prod", "db_password", "secret1"))

	backend := NewKeyringBackend("OX_SECRETS", nil, WithKeyring(ring))
	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Name:     "db_password",
		Category: "prod",
	})
	require.NoError(t, err)
	assert.Equal(t, "secret1", snap["prod"]["db_password"])
}

func TestKeyringBackendMissingNameIsEmptyNotError(t *testing.T) {
	backend := NewKeyringBackend("OX_SECRETS", nil, WithKeyring(newFakeKeyring()))
	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Name:     "nope",
		Category: "prod",
	})
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestKeyringBackendCannotEnumerate(t *testing.T) {
	ring := newFakeKeyring()
	require.NoError(t, ring.Set("ox_secrets/prod", "db_password", "secret1"))

	backend := NewKeyringBackend("OX_SECRETS", nil, WithKeyring(ring))
	snap, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "prod"})
	require.NoError(t, err)
	assert.Empty(t, snap, "whole-category loads have nothing to enumerate")
}

func TestKeyringBackendUnavailable(t *testing.T) {
	ring := newFakeKeyring()
	ring.err = errors.New("dbus: no session bus")

	backend := NewKeyringBackend("OX_SECRETS", nil, WithKeyring(ring))
	_, err := backend.Load(context.Background(), secrets.LoadRequest{
		Name:     "db_password",
		Category: "prod",
	})

	var unavailable *secrets.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "keyring", unavailable.Backend)
}

func TestKeyringBackendStoreThenLoad(t *testing.T) {
	ring := newFakeKeyring()
	backend := NewKeyringBackend("OX_SECRETS", nil, WithKeyring(ring))

	snap, err := backend.Store(context.Background(), map[string]string{
		"api_key": "secret1",
	}, "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, "secret1", snap["prod"]["api_key"])

	loaded, err := backend.Load(context.Background(), secrets.LoadRequest{
		Name:     "api_key",
		Category: "prod",
	})
	require.NoError(t, err)
	assert.Equal(t, "secret1", loaded["prod"]["api_key"])

	// Categories are isolated per keyring service.
	other, err := backend.Load(context.Background(), secrets.LoadRequest{
		Name:     "api_key",
		Category: "staging",
	})
	require.NoError(t, err)
	assert.Empty(t, other)
}
