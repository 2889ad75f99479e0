package backends

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// mockSecretManager serves versions from a map of full resource name to
// payload and records AddSecretVersion calls by parent.
type mockSecretManager struct {
	versions map[string][]byte
	added    map[string][]byte
}

func (m *mockSecretManager) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	data, ok := m.versions[req.Name]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret version not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

func (m *mockSecretManager) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	if m.added == nil {
		m.added = make(map[string][]byte)
	}
	m.added[req.Parent] = req.Payload.Data
	if m.versions == nil {
		m.versions = make(map[string][]byte)
	}
	m.versions[req.Parent+"/versions/latest"] = req.Payload.Data
	return &secretmanagerpb.SecretVersion{Name: req.Parent + "/versions/2"}, nil
}

func TestGCPBackendLoadBundle(t *testing.T) {
	mock := &mockSecretManager{versions: map[string][]byte{
		"projects/acme/secrets/prod-db/versions/latest": []byte(`{"username": "alice", "password": "secret1"}`),
	}}
	backend := NewGCPBackend("acme", nil, WithGCPClient(mock))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "prod-db"})
	require.NoError(t, err)
	assert.Equal(t, "alice", snap["prod-db"]["username"])
	assert.Equal(t, "secret1", snap["prod-db"]["password"])
}

func TestGCPBackendLoadRaw(t *testing.T) {
	mock := &mockSecretManager{versions: map[string][]byte{
		"projects/acme/secrets/ca-cert/versions/latest": []byte("-----BEGIN CERTIFICATE-----"),
	}}
	backend := NewGCPBackend("acme", nil, WithGCPClient(mock))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Category: "ca-cert",
		Params:   secrets.Params{"storage": "raw"},
	})
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN CERTIFICATE-----", snap["ca-cert"]["ca-cert"])
}

func TestGCPBackendLoadNotFound(t *testing.T) {
	backend := NewGCPBackend("acme", nil, WithGCPClient(&mockSecretManager{}))

	_, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "nope"})

	var notFound *secrets.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.Category)
}

func TestGCPBackendProjectParamOverridesDefault(t *testing.T) {
	mock := &mockSecretManager{versions: map[string][]byte{
		"projects/other/secrets/prod-db/versions/latest": []byte(`{"k": "v"}`),
	}}
	backend := NewGCPBackend("acme", nil, WithGCPClient(mock))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Category: "prod-db",
		Params:   secrets.Params{"project": "other"},
	})
	require.NoError(t, err)
	assert.Equal(t, "v", snap["prod-db"]["k"])
}

func TestGCPBackendMissingProject(t *testing.T) {
	backend := NewGCPBackend("", nil, WithGCPClient(&mockSecretManager{}))

	_, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "prod-db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project")
}

func TestGCPBackendStoreAddsMergedVersion(t *testing.T) {
	mock := &mockSecretManager{versions: map[string][]byte{
		"projects/acme/secrets/prod-db/versions/latest": []byte(`{"username": "alice", "password": "secret1"}`),
	}}
	backend := NewGCPBackend("acme", nil, WithGCPClient(mock))

	_, err := backend.Store(context.Background(), map[string]string{
		"password": "secret2",
	}, "prod-db", nil)
	require.NoError(t, err)

	var written map[string]string
	require.NoError(t, json.Unmarshal(mock.added["projects/acme/secrets/prod-db"], &written))
	assert.Equal(t, map[string]string{
		"username": "alice",
		"password": "secret2",
	}, written)
}
