package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type providerFunc func(ctx context.Context) (aws.Credentials, error)

func (f providerFunc) Retrieve(ctx context.Context) (aws.Credentials, error) {
	return f(ctx)
}

func TestSource_Caching(t *testing.T) {
	callCount := 0
	source := NewSource(providerFunc(func(ctx context.Context) (aws.Credentials, error) {
		callCount++
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
			CanExpire:       true,
			Expires:         time.Now().Add(15 * time.Minute),
		}, nil
	}))

	first, err := source.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := source.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if callCount != 1 {
		t.Errorf("callCount = %d, want 1 (cached)", callCount)
	}
	if first.AccessKeyID != second.AccessKeyID {
		t.Error("cached credentials should match")
	}
}

func TestSource_RefreshesNearExpiry(t *testing.T) {
	callCount := 0
	source := NewSource(providerFunc(func(ctx context.Context) (aws.Credentials, error) {
		callCount++
		// Inside the refresh buffer, so every call refreshes
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			CanExpire:       true,
			Expires:         time.Now().Add(30 * time.Second),
		}, nil
	}))

	if _, err := source.Retrieve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := source.Retrieve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if callCount != 2 {
		t.Errorf("callCount = %d, want 2 (should refresh near-expiry credentials)", callCount)
	}
}

func TestSource_StaticCredentialsNeverRefresh(t *testing.T) {
	callCount := 0
	source := NewSource(providerFunc(func(ctx context.Context) (aws.Credentials, error) {
		callCount++
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
		}, nil
	}))

	for i := 0; i < 3; i++ {
		if _, err := source.Retrieve(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
}

func TestSource_NoCredentials(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		source := NewSource(providerFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{}, errors.New("no EC2 IMDS role found")
		}))

		_, err := source.Retrieve(context.Background())
		if !errors.Is(err, ErrNoCredentials) {
			t.Fatalf("error = %v, want ErrNoCredentials", err)
		}
	})

	t.Run("empty keys", func(t *testing.T) {
		source := NewSource(providerFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{}, nil
		}))

		_, err := source.Retrieve(context.Background())
		if !errors.Is(err, ErrNoCredentials) {
			t.Fatalf("error = %v, want ErrNoCredentials", err)
		}
	})
}

func TestSource_Expired(t *testing.T) {
	source := NewSource(providerFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			CanExpire:       true,
			Expires:         time.Now().Add(-1 * time.Minute),
		}, nil
	}))

	_, err := source.Retrieve(context.Background())
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("error = %v, want ErrExpired", err)
	}

	// A failed retrieve must not populate the cache
	_, err = source.Retrieve(context.Background())
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("error on second call = %v, want ErrExpired", err)
	}
}

func TestCallerIdentity(t *testing.T) {
	mock := &mockSTSClient{
		getCallerIdentityFn: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{
				Arn: aws.String("arn:aws:sts::123456789012:assumed-role/lambda-role/function"),
			}, nil
		},
	}

	arn, err := CallerIdentity(context.Background(), mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arn != "arn:aws:sts::123456789012:assumed-role/lambda-role/function" {
		t.Errorf("arn = %q", arn)
	}
}

func TestCallerIdentity_Error(t *testing.T) {
	mock := &mockSTSClient{
		getCallerIdentityFn: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return nil, errors.New("InvalidClientTokenId")
		},
	}

	if _, err := CallerIdentity(context.Background(), mock); err == nil {
		t.Fatal("expected an error")
	}
}

type mockSTSClient struct {
	getCallerIdentityFn func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.getCallerIdentityFn(ctx, params, optFns...)
}
