package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialNeverFormats(t *testing.T) {
	c := NewCredential("hunter2")

	assert.Equal(t, "hunter2", c.Reveal())
	assert.True(t, c.IsSet())
	assert.Equal(t, "[redacted]", fmt.Sprint(c))
	assert.Equal(t, "[redacted] [redacted]", fmt.Sprintf("%v %s", c, c))
	assert.NotContains(t, fmt.Sprintf("%#v", c), "hunter2")

	data, err := json.Marshal(struct{ Token Credential }{c})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	assert.False(t, Credential{}.IsSet())
	assert.Equal(t, "", Credential{}.String())
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	c := Chain{
		MapSource{"A": "first"},
		nil,
		MapSource{"A": "second", "B": "b"},
	}

	v, ok, err := c.Lookup(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok, err = c.Lookup(ctx, "B")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok, err = c.Lookup(ctx, "C")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvSource(t *testing.T) {
	s := EnvSource{LookupEnv: func(k string) (string, bool) {
		if k == "DOCKER_ORG" {
			return "nansencenter", true
		}
		return "", false
	}}

	v, ok, err := s.Lookup(context.Background(), "DOCKER_ORG")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nansencenter", v)
}

type fakeSecretsManager struct {
	calls  int
	secret string
	err    error
}

func (f *fakeSecretsManager) GetSecretValue(
	_ context.Context,
	in *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         in.SecretId,
		SecretString: aws.String(f.secret),
	}, nil
}

func TestAWSSourceFetchesOnce(t *testing.T) {
	fake := &fakeSecretsManager{secret: `{"DOCKER_PASS":"p","PYPI_TOKEN":"t"}`}
	s := NewAWSSourceWithClient(fake, "ci/pipeline")
	ctx := context.Background()

	v, ok, err := s.Lookup(ctx, "DOCKER_PASS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p", v)

	_, ok, err = s.Lookup(ctx, "MISSING")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, fake.calls)
}

func TestAWSSourceErrors(t *testing.T) {
	s := NewAWSSourceWithClient(&fakeSecretsManager{err: errors.New("boom")}, "x")
	_, _, err := s.Lookup(context.Background(), "A")
	require.Error(t, err)

	s = NewAWSSourceWithClient(&fakeSecretsManager{secret: "not json"}, "x")
	_, _, err = s.Lookup(context.Background(), "A")
	require.Error(t, err)
}
