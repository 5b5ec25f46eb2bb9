// Package proxy builds and dispatches HTTP requests through the Kubernetes
// API server's namespaced-service proxy subresource. The API server relays
// the request to the ClusterIP service, so the caller reaches it without any
// network path into the pod network.
package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidTarget is returned when a ServiceTarget cannot produce a valid
// proxy request.
var ErrInvalidTarget = errors.New("invalid service target")

// supportedMethods are the verbs the proxy subresource forwards.
var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ServiceTarget identifies one in-cluster service endpoint plus the request
// shape forwarded to it. Namespace, Service and Port name exactly one proxy
// subresource.
type ServiceTarget struct {
	Namespace string
	Service   string
	Port      int
	Method    string
	// Path is forwarded to the service relative to its root. A query string
	// is carried through untouched.
	Path    string
	Timeout time.Duration
}

// Validate reports whether the target can be composed into a proxy request.
func (t ServiceTarget) Validate() error {
	if t.Namespace == "" {
		return fmt.Errorf("%w: namespace is empty", ErrInvalidTarget)
	}
	if t.Service == "" {
		return fmt.Errorf("%w: service is empty", ErrInvalidTarget)
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidTarget, t.Port)
	}
	if !supportedMethods[strings.ToUpper(t.Method)] {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidTarget, t.Method)
	}
	if _, err := t.splitPath(); err != nil {
		return err
	}
	return nil
}

// ProxyPath composes the API server path for the target:
//
//	/api/v1/namespaces/{namespace}/services/{service}:{port}/proxy{path}
//
// The composition is purely syntactic; nothing about the forwarded path is
// rewritten.
func (t ServiceTarget) ProxyPath() (string, error) {
	u, err := t.splitPath()
	if err != nil {
		return "", err
	}

	forwarded := u.EscapedPath()
	if !strings.HasPrefix(forwarded, "/") {
		forwarded = "/" + forwarded
	}

	p := fmt.Sprintf("/api/v1/namespaces/%s/services/%s:%d/proxy%s",
		url.PathEscape(t.Namespace), url.PathEscape(t.Service), t.Port, forwarded)
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p, nil
}

// splitPath parses the forwarded path into path and query parts, rejecting
// anything that is not a well-formed relative reference.
func (t ServiceTarget) splitPath() (*url.URL, error) {
	u, err := url.Parse(t.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %v", ErrInvalidTarget, t.Path, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return nil, fmt.Errorf("%w: path %q must be relative to the service root", ErrInvalidTarget, t.Path)
	}
	return u, nil
}

func (t ServiceTarget) String() string {
	return fmt.Sprintf("%s/%s:%d", t.Namespace, t.Service, t.Port)
}
