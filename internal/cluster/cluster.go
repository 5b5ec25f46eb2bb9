// Package cluster resolves EKS cluster connection details.
package cluster

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/liavyona/lambda-eks-integration/internal/log"
)

// ErrNotFound is returned when the named cluster does not exist in the region.
var ErrNotFound = errors.New("cluster not found")

// Identity names the target cluster.
type Identity struct {
	Name   string
	Region string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s", id.Region, id.Name)
}

// Details holds the connection material for a cluster's API server.
type Details struct {
	// Endpoint is the HTTPS URL of the API server.
	Endpoint string
	// CertificateAuthority is the PEM bundle the API server certificate
	// chains to.
	CertificateAuthority []byte
}

// DescribeClusterAPI is the subset of the EKS API the resolver uses
// (injectable for testing).
type DescribeClusterAPI interface {
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// Resolver looks up cluster details and caches them for the process lifetime.
// A cluster's endpoint and CA are stable, so unlike tokens they are safe to
// reuse across warm invocations.
type Resolver struct {
	client DescribeClusterAPI

	mu       sync.RWMutex
	cachedID Identity
	cached   *Details
}

// NewResolver creates a Resolver backed by the given EKS client.
func NewResolver(client DescribeClusterAPI) *Resolver {
	return &Resolver{client: client}
}

// Resolve returns the API server endpoint and CA bundle for the cluster. The
// first successful lookup is cached; a lookup for a different identity
// replaces the cache.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*Details, error) {
	r.mu.RLock()
	if r.cached != nil && r.cachedID == id {
		details := r.cached
		r.mu.RUnlock()
		return details, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if r.cached != nil && r.cachedID == id {
		return r.cached, nil
	}

	details, err := r.describe(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cached = details
	r.cachedID = id
	return details, nil
}

func (r *Resolver) describe(ctx context.Context, id Identity) (*Details, error) {
	out, err := r.client.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(id.Name),
	})
	if err != nil {
		var notFound *ekstypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("describing cluster %s: %w", id, err)
	}

	c := out.Cluster
	if c == nil || c.Endpoint == nil {
		return nil, fmt.Errorf("describing cluster %s: response carries no endpoint", id)
	}
	if c.CertificateAuthority == nil || c.CertificateAuthority.Data == nil {
		return nil, fmt.Errorf("describing cluster %s: response carries no certificate authority", id)
	}

	// EKS returns the CA bundle base64-encoded on top of the PEM encoding.
	ca, err := base64.StdEncoding.DecodeString(aws.ToString(c.CertificateAuthority.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding certificate authority for cluster %s: %w", id, err)
	}

	log.Debug("resolved cluster", "cluster", id.String(), "endpoint", aws.ToString(c.Endpoint))

	return &Details{
		Endpoint:             aws.ToString(c.Endpoint),
		CertificateAuthority: ca,
	}, nil
}
