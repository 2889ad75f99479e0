package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	oxerrors "github.com/oxsecrets/oxsecrets/internal/errors"
	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// GCPSecretManagerAPI is the slice of the Secret Manager client the backend
// uses. This allows for mocking in tests.
type GCPSecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
}

// GCPBackend resolves secrets from Google Cloud Secret Manager. The category
// names the secret; its latest version holds a JSON bundle of secret names
// to values (or the single value in storage=raw mode). Loader params:
//
//	project           GCP project id (default from settings cloud.gcp_project)
//	credentials_file  service account key file path
//	storage           raw keeps the payload as one value keyed by the category
type GCPBackend struct {
	project string
	logger  *logging.Logger

	mu     sync.Mutex
	client GCPSecretManagerAPI
}

// GCPOption is a functional option for configuring the GCP backend.
type GCPOption func(*GCPBackend)

// WithGCPClient sets a custom Secret Manager client (for testing).
func WithGCPClient(client GCPSecretManagerAPI) GCPOption {
	return func(b *GCPBackend) {
		b.client = client
	}
}

// NewGCPBackend creates the GCP backend with a default project id.
func NewGCPBackend(project string, logger *logging.Logger, opts ...GCPOption) *GCPBackend {
	if logger == nil {
		logger = logging.New(false, false)
	}
	b := &GCPBackend{project: project, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode implements secrets.Backend.
func (b *GCPBackend) Mode() secrets.Mode {
	return secrets.ModeGCP
}

// Load implements secrets.Backend by accessing the latest version of the
// secret named by the category.
func (b *GCPBackend) Load(ctx context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	project, err := b.projectFor(req.Params)
	if err != nil {
		return nil, err
	}
	client, err := b.secretManagerClient(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	name := versionName(project, req.Category)
	b.logger.Debug("accessing GCP secret version %s", name)
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, mapGCPError(err, req.Category)
	}
	if result.Payload == nil || result.Payload.Data == nil {
		return nil, &secrets.FormatError{
			Source: "GCP secret " + req.Category,
			Detail: "secret version has no payload",
		}
	}
	payload := string(result.Payload.Data)

	snap := make(secrets.Snapshot)
	if req.Params["storage"] == "raw" {
		snap.Set(req.Category, req.Category, payload)
		return snap, nil
	}
	bundle, err := decodeBundle("GCP secret "+req.Category, payload)
	if err != nil {
		return nil, err
	}
	for name, value := range bundle {
		snap.Set(req.Category, name, value)
	}
	return snap, nil
}

// Store implements secrets.Writer by adding a new secret version with the
// merged bundle. Old versions stay readable in Secret Manager but this
// backend only ever reads the latest.
func (b *GCPBackend) Store(ctx context.Context, values map[string]string, category string, params secrets.Params) (secrets.Snapshot, error) {
	project, err := b.projectFor(params)
	if err != nil {
		return nil, err
	}
	client, err := b.secretManagerClient(ctx, params)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]string)
	snap, err := b.Load(ctx, secrets.LoadRequest{Category: category, Params: params})
	if err != nil {
		var notFound *secrets.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	} else {
		existing = snap[category]
	}
	merged := make(map[string]string, len(existing)+len(values))
	for name, value := range existing {
		merged[name] = value
	}
	for name, value := range values {
		merged[name] = value
	}

	var payload []byte
	if params["storage"] == "raw" {
		value, ok := merged[category]
		if !ok {
			return nil, oxerrors.ConfigError{
				Field:      "storage",
				Message:    "a raw-mode bundle holds exactly one value keyed by its category",
				Suggestion: fmt.Sprintf("Store the value under the name %q", category),
			}
		}
		payload = []byte(value)
	} else {
		payload, err = json.Marshal(merged)
		if err != nil {
			return nil, err
		}
	}

	_, err = client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: fmt.Sprintf("projects/%s/secrets/%s", project, category),
		Payload: &secretmanagerpb.SecretPayload{
			Data: payload,
		},
	})
	if err != nil {
		return nil, mapGCPError(err, category)
	}

	out := make(secrets.Snapshot)
	for name, value := range values {
		out.Set(category, name, value)
	}
	return out, nil
}

func (b *GCPBackend) projectFor(params secrets.Params) (string, error) {
	project := paramOr(params, "project", b.project)
	if project == "" {
		return "", oxerrors.ConfigError{
			Field:      "project",
			Message:    "a GCP project id is required",
			Suggestion: "Set cloud.gcp_project in the settings file or pass --loader project/PROJECT_ID",
		}
	}
	return project, nil
}

func (b *GCPBackend) secretManagerClient(ctx context.Context, params secrets.Params) (GCPSecretManagerAPI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	var opts []option.ClientOption
	if keyFile := params["credentials_file"]; keyFile != "" {
		opts = append(opts, option.WithCredentialsFile(keyFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, &secrets.UnavailableError{Backend: "gcp", Err: err}
	}
	b.client = client
	return b.client, nil
}

func versionName(project, category string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, category)
}

func mapGCPError(err error, category string) error {
	if status.Code(err) == codes.NotFound {
		return &secrets.NotFoundError{Category: category}
	}
	return &secrets.UnavailableError{Backend: "gcp", Err: err}
}
