// Package credential resolves the caller's ambient AWS identity. In Lambda
// that is the execution role injected by the runtime; on a developer machine
// it is whatever the default chain finds.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// refreshBuffer is the time before expiration when cached credentials are
// refreshed instead of served.
const refreshBuffer = 1 * time.Minute

var (
	// ErrNoCredentials is returned when the ambient chain yields no identity.
	ErrNoCredentials = errors.New("no AWS credentials available")
	// ErrExpired is returned when the resolved credentials are already expired.
	ErrExpired = errors.New("AWS credentials expired")
)

// Source hands out the caller's AWS credentials from a single process-scoped
// cell, checked against expiry on every access.
type Source struct {
	provider aws.CredentialsProvider

	mu     sync.RWMutex
	cached aws.Credentials
	valid  bool
}

// NewSource wraps a credentials provider, normally the default chain from
// config.LoadDefaultConfig.
func NewSource(provider aws.CredentialsProvider) *Source {
	return &Source{provider: provider}
}

// Retrieve returns current credentials, refreshing the cell when the cached
// ones are within refreshBuffer of expiration.
func (s *Source) Retrieve(ctx context.Context) (aws.Credentials, error) {
	s.mu.RLock()
	if s.valid && usable(s.cached, time.Now()) {
		creds := s.cached
		s.mu.RUnlock()
		return creds, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.valid && usable(s.cached, time.Now()) {
		return s.cached, nil
	}

	creds, err := s.provider.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	if !creds.HasKeys() {
		return aws.Credentials{}, fmt.Errorf("%w: provider returned empty keys", ErrNoCredentials)
	}
	if creds.CanExpire && !time.Now().Before(creds.Expires) {
		return aws.Credentials{}, fmt.Errorf("%w: expired at %s", ErrExpired, creds.Expires.Format(time.RFC3339))
	}

	s.cached = creds
	s.valid = true
	return creds, nil
}

// usable reports whether creds are still worth serving at the given time.
// Static credentials never expire; expiring ones are refreshed refreshBuffer
// early so a token minted from them outlives its own validity window.
func usable(creds aws.Credentials, now time.Time) bool {
	if !creds.CanExpire {
		return true
	}
	return now.Add(refreshBuffer).Before(creds.Expires)
}

// STSCallerIdentityAPI is the subset of the STS API used to identify the
// caller (injectable for testing).
type STSCallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// CallerIdentity returns the ARN the credential chain resolves to. Called once
// at startup so a misconfigured role surfaces in the logs immediately.
func CallerIdentity(ctx context.Context, client STSCallerIdentityAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("getting caller identity: %w", err)
	}
	return aws.ToString(out.Arn), nil
}
