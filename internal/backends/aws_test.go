package backends

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// mockSecretsManager serves secret bundles from a map of secret id to
// payload and records PutSecretValue calls.
type mockSecretsManager struct {
	payloads map[string]string
	put      map[string]string
}

func (m *mockSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	payload, ok := m.payloads[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(payload)}, nil
}

func (m *mockSecretsManager) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if m.put == nil {
		m.put = make(map[string]string)
	}
	id := aws.ToString(params.SecretId)
	m.put[id] = aws.ToString(params.SecretString)
	if m.payloads == nil {
		m.payloads = make(map[string]string)
	}
	m.payloads[id] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{}, nil
}

type mockSSM struct {
	params map[string]string
	put    map[string]string
}

func (m *mockSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	value, ok := m.params[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(value)},
	}, nil
}

func (m *mockSSM) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if m.put == nil {
		m.put = make(map[string]string)
	}
	name := aws.ToString(params.Name)
	m.put[name] = aws.ToString(params.Value)
	if m.params == nil {
		m.params = make(map[string]string)
	}
	m.params[name] = aws.ToString(params.Value)
	return &ssm.PutParameterOutput{}, nil
}

func TestAWSBackendLoadSecretsManagerBundle(t *testing.T) {
	sm := &mockSecretsManager{payloads: map[string]string{
		"prod/db": `{"username": "alice", "password": "secret1"}`,
	}}
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(sm))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "prod/db"})
	require.NoError(t, err)
	assert.Equal(t, "alice", snap["prod/db"]["username"])
	assert.Equal(t, "secret1", snap["prod/db"]["password"])
}

func TestAWSBackendLoadSecretsManagerRaw(t *testing.T) {
	sm := &mockSecretsManager{payloads: map[string]string{
		"prod/token": "not json at all",
	}}
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(sm))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Category: "prod/token",
		Params:   secrets.Params{"storage": "raw"},
	})
	require.NoError(t, err)
	assert.Equal(t, "not json at all", snap["prod/token"]["prod/token"])
}

func TestAWSBackendLoadSecretsManagerNotFound(t *testing.T) {
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(&mockSecretsManager{}))

	_, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "nope"})

	var notFound *secrets.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.Category)
}

func TestAWSBackendLoadSecretsManagerBadJSON(t *testing.T) {
	sm := &mockSecretsManager{payloads: map[string]string{"prod/db": "not json"}}
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(sm))

	_, err := backend.Load(context.Background(), secrets.LoadRequest{Category: "prod/db"})

	var formatErr *secrets.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestAWSBackendLoadSSMPlainParameter(t *testing.T) {
	mock := &mockSSM{params: map[string]string{"/prod/token": "secret1"}}
	backend := NewAWSBackend("", nil, WithSSMClient(mock))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Category: "/prod/token",
		Params:   secrets.Params{"service_name": "ssm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "secret1", snap["/prod/token"]["/prod/token"])
}

func TestAWSBackendLoadSSMJSONParameter(t *testing.T) {
	mock := &mockSSM{params: map[string]string{
		"/prod/db.json": `{"username": "alice", "password": "secret1"}`,
	}}
	backend := NewAWSBackend("", nil, WithSSMClient(mock))

	snap, err := backend.Load(context.Background(), secrets.LoadRequest{
		Category: "/prod/db.json",
		Params:   secrets.Params{"service_name": "ssm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", snap["/prod/db.json"]["username"])
	assert.Equal(t, "secret1", snap["/prod/db.json"]["password"])
}

func TestAWSBackendUnknownService(t *testing.T) {
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(&mockSecretsManager{}))

	_, err := backend.Load(context.Background(), secrets.LoadRequest{
		Category: "prod/db",
		Params:   secrets.Params{"service_name": "dynamodb"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown AWS service")
}

func TestAWSBackendStoreMergesBundle(t *testing.T) {
	sm := &mockSecretsManager{payloads: map[string]string{
		"prod/db": `{"username": "alice", "password": "secret1"}`,
	}}
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(sm))

	snap, err := backend.Store(context.Background(), map[string]string{
		"password": "secret2",
		"host":     "db.internal",
	}, "prod/db", nil)
	require.NoError(t, err)
	assert.Equal(t, "secret2", snap["prod/db"]["password"])

	var written map[string]string
	require.NoError(t, json.Unmarshal([]byte(sm.put["prod/db"]), &written))
	assert.Equal(t, map[string]string{
		"username": "alice",
		"password": "secret2",
		"host":     "db.internal",
	}, written, "untouched names survive the write-back")
}

func TestAWSBackendStoreCreatesMissingBundle(t *testing.T) {
	sm := &mockSecretsManager{}
	backend := NewAWSBackend("", nil, WithSecretsManagerClient(sm))

	_, err := backend.Store(context.Background(), map[string]string{"token": "secret1"}, "new/bundle", nil)
	require.NoError(t, err)

	var written map[string]string
	require.NoError(t, json.Unmarshal([]byte(sm.put["new/bundle"]), &written))
	assert.Equal(t, map[string]string{"token": "secret1"}, written)
}

func TestAWSBackendStoreSSMPlain(t *testing.T) {
	mock := &mockSSM{}
	backend := NewAWSBackend("", nil, WithSSMClient(mock))

	_, err := backend.Store(context.Background(), map[string]string{
		"/prod/token": "secret1",
	}, "/prod/token", secrets.Params{"service_name": "ssm"})
	require.NoError(t, err)
	assert.Equal(t, "secret1", mock.put["/prod/token"])
}
