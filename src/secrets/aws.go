package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource serves keys from a single Secrets Manager secret whose value is a
// flat JSON object ({"DOCKER_PASS": "...", "PYPI_TOKEN": "..."}). The secret
// is fetched once per run on first lookup.
type AWSSource struct {
	client   SecretsManagerAPI
	secretID string

	once   sync.Once
	values map[string]string
	err    error
}

// NewAWSSource builds a source using the default AWS credential chain.
// Region and endpoint may be empty.
func NewAWSSource(ctx context.Context, secretID, region, endpoint string) (*AWSSource, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: loading aws config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewAWSSourceWithClient(client, secretID), nil
}

// NewAWSSourceWithClient builds a source around an existing client.
func NewAWSSourceWithClient(client SecretsManagerAPI, secretID string) *AWSSource {
	return &AWSSource{client: client, secretID: secretID}
}

func (s *AWSSource) Lookup(ctx context.Context, name string) (string, bool, error) {
	s.once.Do(func() { s.values, s.err = s.fetch(ctx) })
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[name]
	return v, ok, nil
}

func (s *AWSSource) fetch(ctx context.Context) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("secrets: secret %q not found: %w", s.secretID, err)
		}
		return nil, fmt.Errorf("secrets: reading %q: %w", s.secretID, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("secrets: %q is not a flat JSON object: %w", s.secretID, err)
	}
	return values, nil
}
