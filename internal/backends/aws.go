package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	oxerrors "github.com/oxsecrets/oxsecrets/internal/errors"
	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// SecretsManagerAPI is the slice of AWS Secrets Manager the backend uses.
// This allows for mocking in tests.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// SSMAPI is the slice of AWS SSM Parameter Store the backend uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// AWSBackend resolves secrets from AWS. The category is the remote
// identifier: a Secrets Manager secret id, or an SSM parameter name when
// service_name=ssm. Loader params:
//
//	service_name       secretsmanager (default) or ssm
//	profile            shared-config profile (default from settings)
//	region             AWS region override
//	storage            raw keeps the payload as one value keyed by the
//	                   category; default decodes a JSON name-to-value bundle
//	access_key_id      static credentials, mainly for LocalStack testing
//	secret_access_key
//
// Clients are constructed lazily per call unless injected, so selecting a
// different backend never requires AWS credentials.
type AWSBackend struct {
	profile string
	logger  *logging.Logger

	sm   SecretsManagerAPI
	ssmc SSMAPI
}

// AWSOption is a functional option for configuring the AWS backend.
type AWSOption func(*AWSBackend)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) AWSOption {
	return func(b *AWSBackend) {
		b.sm = client
	}
}

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMAPI) AWSOption {
	return func(b *AWSBackend) {
		b.ssmc = client
	}
}

// NewAWSBackend creates the AWS backend with a default profile.
func NewAWSBackend(profile string, logger *logging.Logger, opts ...AWSOption) *AWSBackend {
	if logger == nil {
		logger = logging.New(false, false)
	}
	b := &AWSBackend{profile: profile, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode implements secrets.Backend.
func (b *AWSBackend) Mode() secrets.Mode {
	return secrets.ModeAWS
}

// Load implements secrets.Backend by fetching the whole bundle named by the
// category.
func (b *AWSBackend) Load(ctx context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	service := paramOr(req.Params, "service_name", "secretsmanager")
	switch service {
	case "secretsmanager":
		return b.loadSecretsManager(ctx, req)
	case "ssm":
		return b.loadSSM(ctx, req)
	default:
		return nil, oxerrors.ConfigError{
			Field:      "service_name",
			Value:      service,
			Message:    "unknown AWS service",
			Suggestion: "Use service_name/secretsmanager or service_name/ssm",
		}
	}
}

func (b *AWSBackend) loadSecretsManager(ctx context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	client, err := b.secretsManagerClient(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("fetching AWS secret bundle %q", req.Category)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(req.Category),
	})
	if err != nil {
		return nil, b.mapError(err, req.Category)
	}

	payload := aws.ToString(out.SecretString)
	if payload == "" && out.SecretBinary != nil {
		payload = string(out.SecretBinary)
	}

	snap := make(secrets.Snapshot)
	if req.Params["storage"] == "raw" {
		snap.Set(req.Category, req.Category, payload)
		return snap, nil
	}
	bundle, err := decodeBundle("AWS secret "+req.Category, payload)
	if err != nil {
		return nil, err
	}
	for name, value := range bundle {
		snap.Set(req.Category, name, value)
	}
	return snap, nil
}

func (b *AWSBackend) loadSSM(ctx context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	client, err := b.ssmClient(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("fetching SSM parameter %q", req.Category)
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(req.Category),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, b.mapError(err, req.Category)
	}
	value := aws.ToString(out.Parameter.Value)

	snap := make(secrets.Snapshot)
	if ssmJSONMode(req.Category, req.Params) {
		bundle, err := decodeBundle("SSM parameter "+req.Category, value)
		if err != nil {
			return nil, err
		}
		for name, v := range bundle {
			snap.Set(req.Category, name, v)
		}
		return snap, nil
	}
	snap.Set(req.Category, req.Category, value)
	return snap, nil
}

// Store implements secrets.Writer with a fetch-merge-write-back of the whole
// remote bundle. There is no optimistic locking: a concurrent writer to the
// same secret id can be overwritten, same as the file backend.
func (b *AWSBackend) Store(ctx context.Context, values map[string]string, category string, params secrets.Params) (secrets.Snapshot, error) {
	service := paramOr(params, "service_name", "secretsmanager")
	req := secrets.LoadRequest{Category: category, Params: params}

	existing := make(map[string]string)
	snap, err := b.Load(ctx, req)
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

	payload, err := encodeBundle(category, merged, params)
	if err != nil {
		return nil, err
	}

	switch service {
	case "secretsmanager":
		client, err := b.secretsManagerClient(ctx, params)
		if err != nil {
			return nil, err
		}
		_, err = client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(category),
			SecretString: aws.String(payload),
		})
		if err != nil {
			return nil, b.mapError(err, category)
		}
	case "ssm":
		client, err := b.ssmClient(ctx, params)
		if err != nil {
			return nil, err
		}
		_, err = client.PutParameter(ctx, &ssm.PutParameterInput{
			Name:      aws.String(category),
			Value:     aws.String(payload),
			Type:      ssmtypes.ParameterTypeSecureString,
			Overwrite: aws.Bool(true),
		})
		if err != nil {
			return nil, b.mapError(err, category)
		}
	default:
		return nil, oxerrors.ConfigError{
			Field:      "service_name",
			Value:      service,
			Message:    "unknown AWS service",
			Suggestion: "Use service_name/secretsmanager or service_name/ssm",
		}
	}

	out := make(secrets.Snapshot)
	for name, value := range values {
		out.Set(category, name, value)
	}
	return out, nil
}

// encodeBundle renders the merged bundle the way the matching load would
// decode it: JSON by default, the single category-keyed value in raw or
// plain-parameter mode.
func encodeBundle(category string, merged map[string]string, params secrets.Params) (string, error) {
	rawMode := params["storage"] == "raw" ||
		(paramOr(params, "service_name", "secretsmanager") == "ssm" && !ssmJSONMode(category, params))
	if rawMode {
		value, ok := merged[category]
		if !ok {
			return "", oxerrors.ConfigError{
				Field:      "storage",
				Message:    "a raw-mode bundle holds exactly one value keyed by its category",
				Suggestion: fmt.Sprintf("Store the value under the name %q", category),
			}
		}
		return value, nil
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ssmJSONMode(category string, params secrets.Params) bool {
	if params["storage"] == "json" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(category), ".json")
}

func (b *AWSBackend) mapError(err error, category string) error {
	var smNotFound *smtypes.ResourceNotFoundException
	var ssmNotFound *ssmtypes.ParameterNotFound
	if errors.As(err, &smNotFound) || errors.As(err, &ssmNotFound) {
		return &secrets.NotFoundError{Category: category}
	}
	return &secrets.UnavailableError{Backend: "aws", Err: err}
}

func (b *AWSBackend) secretsManagerClient(ctx context.Context, params secrets.Params) (SecretsManagerAPI, error) {
	if b.sm != nil {
		return b.sm, nil
	}
	cfg, err := b.awsConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func (b *AWSBackend) ssmClient(ctx context.Context, params secrets.Params) (SSMAPI, error) {
	if b.ssmc != nil {
		return b.ssmc, nil
	}
	cfg, err := b.awsConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(cfg), nil
}

func (b *AWSBackend) awsConfig(ctx context.Context, params secrets.Params) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if profile := paramOr(params, "profile", b.profile); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region := params["region"]; region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if ak, sk := params["access_key_id"], params["secret_access_key"]; ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, &secrets.UnavailableError{Backend: "aws", Err: err}
	}
	return cfg, nil
}
