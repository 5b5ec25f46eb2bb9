package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"k8s.io/client-go/rest"

	"github.com/liavyona/lambda-eks-integration/internal/cluster"
	"github.com/liavyona/lambda-eks-integration/internal/log"
	"github.com/liavyona/lambda-eks-integration/internal/token"
)

var (
	// ErrTimeout marks a dispatch abandoned at the configured deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrNetwork marks a transport failure before an HTTP status was read.
	ErrNetwork = errors.New("network failure")
)

// Result is the outcome of one dispatch. A backend status of any class is a
// successful dispatch; Err is set only when the transport itself failed and
// StatusCode stays zero.
type Result struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Dispatcher sends proxy requests to one cluster API server, authenticated
// with one token. Build a fresh one per invocation so the bearer token is
// never older than the invocation using it.
type Dispatcher struct {
	endpoint string
	client   *http.Client
}

// NewDispatcher builds an HTTP client that trusts the cluster CA and carries
// the token as bearer authentication, the same way kubeconfig-driven clients
// assemble their transport.
func NewDispatcher(details *cluster.Details, tok token.Token, timeout time.Duration) (*Dispatcher, error) {
	restCfg := &rest.Config{
		Host:        details.Endpoint,
		BearerToken: tok.Value,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: details.CertificateAuthority,
		},
		Timeout: timeout,
	}

	httpClient, err := rest.HTTPClientFor(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building API server client: %w", err)
	}

	return &Dispatcher{
		endpoint: strings.TrimSuffix(details.Endpoint, "/"),
		client:   httpClient,
	}, nil
}

// Dispatch performs the call and captures the outcome. It never returns an
// error: transport failures land in the Result so the caller can always
// produce a well-formed report. The response status is passed through
// whatever it is; a 500 from the backend is the backend's answer, not a
// dispatch failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) Result {
	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Target.Method), d.endpoint+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: building request: %v", ErrNetwork, err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	log.Debug("dispatching proxy request",
		"method", httpReq.Method,
		"target", req.Target.String(),
		"path", req.Path)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Result{Err: classify(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: classify(err)}
	}

	return Result{StatusCode: resp.StatusCode, Body: body}
}

// classify folds transport errors into the two reportable kinds. Proxied
// requests are not assumed idempotent, so neither kind is retried.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
