// Package secrets supplies extra forwarded request headers from AWS Secrets
// Manager, for backends that sit behind their own authentication.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/liavyona/lambda-eks-integration/internal/log"
)

// cacheTTL bounds how long a fetched header set is reused. Header secrets
// rotate rarely, so warm invocations skip the round trip.
const cacheTTL = 1 * time.Hour

// GetSecretValueAPI is the subset of the Secrets Manager API the source uses
// (injectable for testing).
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// HeaderSource fetches a JSON object of header name/value pairs from a named
// secret and caches it for cacheTTL.
type HeaderSource struct {
	client   GetSecretValueAPI
	secretID string

	mu        sync.RWMutex
	cached    map[string]string
	fetchedAt time.Time
}

// NewHeaderSource creates a HeaderSource for the named secret.
func NewHeaderSource(client GetSecretValueAPI, secretID string) *HeaderSource {
	return &HeaderSource{client: client, secretID: secretID}
}

// Headers returns the configured extra headers. A nil source means no secret
// was configured and yields no headers.
func (h *HeaderSource) Headers(ctx context.Context) (map[string]string, error) {
	if h == nil {
		return nil, nil
	}

	h.mu.RLock()
	if h.cached != nil && time.Since(h.fetchedAt) < cacheTTL {
		headers := h.cached
		h.mu.RUnlock()
		return headers, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Double-check after acquiring write lock
	if h.cached != nil && time.Since(h.fetchedAt) < cacheTTL {
		return h.cached, nil
	}

	headers, err := h.fetch(ctx)
	if err != nil {
		return nil, err
	}

	h.cached = headers
	h.fetchedAt = time.Now()
	return headers, nil
}

func (h *HeaderSource) fetch(ctx context.Context) (map[string]string, error) {
	out, err := h.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(h.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching header secret %s: %w", h.secretID, err)
	}

	payload := []byte(aws.ToString(out.SecretString))
	if len(payload) == 0 {
		payload = out.SecretBinary
	}

	var headers map[string]string
	if err := json.Unmarshal(payload, &headers); err != nil {
		return nil, fmt.Errorf("header secret %s is not a JSON object of strings: %w", h.secretID, err)
	}

	log.Debug("loaded forwarded headers", "secret", h.secretID, "count", len(headers))
	return headers, nil
}
