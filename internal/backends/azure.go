package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	oxerrors "github.com/oxsecrets/oxsecrets/internal/errors"
	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// AzureSecretsAPI is the slice of the Key Vault secrets client the backend
// uses. This allows for mocking in tests.
type AzureSecretsAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureBackend resolves secrets from Azure Key Vault. The category names the
// vault secret; its current version holds a JSON bundle of secret names to
// values (or the single value in storage=raw mode). Loader params:
//
//	vault_url  Key Vault URL (default from settings cloud.azure_vault_url)
//	storage    raw keeps the payload as one value keyed by the category
//
// Authentication uses the default Azure credential chain (environment,
// managed identity, Azure CLI).
type AzureBackend struct {
	vaultURL string
	logger   *logging.Logger

	mu     sync.Mutex
	client AzureSecretsAPI
}

// AzureOption is a functional option for configuring the Azure backend.
type AzureOption func(*AzureBackend)

// WithAzureClient sets a custom Key Vault client (for testing).
func WithAzureClient(client AzureSecretsAPI) AzureOption {
	return func(b *AzureBackend) {
		b.client = client
	}
}

// NewAzureBackend creates the Azure backend with a default vault URL.
func NewAzureBackend(vaultURL string, logger *logging.Logger, opts ...AzureOption) *AzureBackend {
	if logger == nil {
		logger = logging.New(false, false)
	}
	b := &AzureBackend{vaultURL: vaultURL, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode implements secrets.Backend.
func (b *AzureBackend) Mode() secrets.Mode {
	return secrets.ModeAzure
}

// Load implements secrets.Backend by fetching the current version of the
// vault secret named by the category.
func (b *AzureBackend) Load(ctx context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	client, err := b.vaultClient(req.Params)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("fetching Key Vault secret %q", req.Category)
	resp, err := client.GetSecret(ctx, req.Category, "", nil)
	if err != nil {
		return nil, mapAzureError(err, req.Category)
	}
	var payload string
	if resp.Value != nil {
		payload = *resp.Value
	}

	snap := make(secrets.Snapshot)
	if req.Params["storage"] == "raw" {
		snap.Set(req.Category, req.Category, payload)
		return snap, nil
	}
	bundle, err := decodeBundle("Azure secret "+req.Category, payload)
	if err != nil {
		return nil, err
	}
	for name, value := range bundle {
		snap.Set(req.Category, name, value)
	}
	return snap, nil
}

// Store implements secrets.Writer by setting a new version of the vault
// secret with the merged bundle.
func (b *AzureBackend) Store(ctx context.Context, values map[string]string, category string, params secrets.Params) (secrets.Snapshot, error) {
	client, err := b.vaultClient(params)
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

	var payload string
	if params["storage"] == "raw" {
		value, ok := merged[category]
		if !ok {
			return nil, oxerrors.ConfigError{
				Field:      "storage",
				Message:    "a raw-mode bundle holds exactly one value keyed by its category",
				Suggestion: fmt.Sprintf("Store the value under the name %q", category),
			}
		}
		payload = value
	} else {
		data, err := json.Marshal(merged)
		if err != nil {
			return nil, err
		}
		payload = string(data)
	}

	_, err = client.SetSecret(ctx, category, azsecrets.SetSecretParameters{
		Value: &payload,
	}, nil)
	if err != nil {
		return nil, mapAzureError(err, category)
	}

	out := make(secrets.Snapshot)
	for name, value := range values {
		out.Set(category, name, value)
	}
	return out, nil
}

func (b *AzureBackend) vaultClient(params secrets.Params) (AzureSecretsAPI, error) {
	vaultURL := paramOr(params, "vault_url", b.vaultURL)
	if vaultURL == "" {
		return nil, oxerrors.ConfigError{
			Field:      "vault_url",
			Message:    "a Key Vault URL is required",
			Suggestion: "Set cloud.azure_vault_url in the settings file or pass --loader vault_url/https://VAULT.vault.azure.net",
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, &secrets.UnavailableError{Backend: "azure", Err: err}
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, &secrets.UnavailableError{Backend: "azure", Err: err}
	}
	b.client = client
	return b.client, nil
}

func mapAzureError(err error, category string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return &secrets.NotFoundError{Category: category}
	}
	return &secrets.UnavailableError{Backend: "azure", Err: err}
}
