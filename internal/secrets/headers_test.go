package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

func TestHeaderSource_Headers(t *testing.T) {
	mock := &mockSecretsClient{
		getSecretValueFn: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			if aws.ToString(params.SecretId) != "service/headers" {
				t.Errorf("SecretId = %q, want service/headers", aws.ToString(params.SecretId))
			}
			return &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"X-Api-Key":"sekrit","X-Tenant":"demo"}`),
			}, nil
		},
	}

	headers, err := NewHeaderSource(mock, "service/headers").Headers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if headers["X-Api-Key"] != "sekrit" {
		t.Errorf("X-Api-Key = %q, want sekrit", headers["X-Api-Key"])
	}
	if headers["X-Tenant"] != "demo" {
		t.Errorf("X-Tenant = %q, want demo", headers["X-Tenant"])
	}
}

func TestHeaderSource_Caches(t *testing.T) {
	callCount := 0
	mock := &mockSecretsClient{
		getSecretValueFn: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			callCount++
			return &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"X-Api-Key":"sekrit"}`),
			}, nil
		},
	}

	source := NewHeaderSource(mock, "service/headers")
	for i := 0; i < 3; i++ {
		if _, err := source.Headers(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if callCount != 1 {
		t.Errorf("callCount = %d, want 1 (cached)", callCount)
	}
}

func TestHeaderSource_NilMeansNoHeaders(t *testing.T) {
	var source *HeaderSource

	headers, err := source.Headers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers != nil {
		t.Errorf("headers = %v, want nil", headers)
	}
}

func TestHeaderSource_BinaryPayload(t *testing.T) {
	mock := &mockSecretsClient{
		getSecretValueFn: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{
				SecretBinary: []byte(`{"X-Api-Key":"sekrit"}`),
			}, nil
		},
	}

	headers, err := NewHeaderSource(mock, "service/headers").Headers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers["X-Api-Key"] != "sekrit" {
		t.Errorf("X-Api-Key = %q, want sekrit", headers["X-Api-Key"])
	}
}

func TestHeaderSource_Errors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		mock := &mockSecretsClient{
			getSecretValueFn: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, errors.New("ResourceNotFoundException")
			},
		}

		if _, err := NewHeaderSource(mock, "service/headers").Headers(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("payload not a JSON object", func(t *testing.T) {
		mock := &mockSecretsClient{
			getSecretValueFn: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return &secretsmanager.GetSecretValueOutput{
					SecretString: aws.String(`["not","a","map"]`),
				}, nil
			},
		}

		if _, err := NewHeaderSource(mock, "service/headers").Headers(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		callCount := 0
		mock := &mockSecretsClient{
			getSecretValueFn: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				callCount++
				if callCount == 1 {
					return nil, errors.New("throttled")
				}
				return &secretsmanager.GetSecretValueOutput{
					SecretString: aws.String(`{"X-Api-Key":"sekrit"}`),
				}, nil
			},
		}

		source := NewHeaderSource(mock, "service/headers")
		if _, err := source.Headers(context.Background()); err == nil {
			t.Fatal("expected first call to fail")
		}
		headers, err := source.Headers(context.Background())
		if err != nil {
			t.Fatalf("unexpected error on retry: %v", err)
		}
		if headers["X-Api-Key"] != "sekrit" {
			t.Errorf("X-Api-Key = %q, want sekrit", headers["X-Api-Key"])
		}
	})
}

type mockSecretsClient struct {
	getSecretValueFn func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.getSecretValueFn(ctx, params, optFns...)
}
