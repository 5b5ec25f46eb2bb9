// Package config loads invocation configuration from the Lambda environment
// or from a YAML manifest.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/liavyona/lambda-eks-integration/internal/cluster"
	"github.com/liavyona/lambda-eks-integration/internal/proxy"
)

// ErrInvalid is returned when required configuration is missing or a value is
// out of range.
var ErrInvalid = errors.New("invalid configuration")

// Environment variable names. A deployment configures the function with
// exactly this set.
const (
	EnvClusterName      = "CLUSTER_NAME"
	EnvClusterRegion    = "CLUSTER_REGION"
	EnvServiceNamespace = "SERVICE_NAMESPACE"
	EnvServiceName      = "SERVICE_NAME"
	EnvServicePort      = "SERVICE_PORT"
	EnvRequestTimeout   = "SERVICE_REQUEST_TIMEOUT"
	EnvRequestMethod    = "SERVICE_REQUEST_METHOD"
	EnvRequestPath      = "SERVICE_REQUEST_PATH"
	EnvHeadersSecret    = "SERVICE_REQUEST_HEADERS_SECRET"
)

// Defaults for everything that is not required.
const (
	DefaultRegion                = "eu-central-1"
	DefaultServicePort           = 8080
	DefaultRequestTimeoutSeconds = 30
	DefaultRequestMethod         = http.MethodGet
	DefaultRequestPath           = "hello"
)

// Config holds everything one invocation needs: which cluster to talk to and
// what request to send to which service.
type Config struct {
	ClusterName      string
	ClusterRegion    string
	ServiceNamespace string
	ServiceName      string
	ServicePort      int
	RequestTimeout   time.Duration
	RequestMethod    string
	RequestPath      string
	// HeadersSecret optionally names a Secrets Manager secret holding extra
	// forwarded headers. Empty disables it.
	HeadersSecret string
}

// FromEnv loads and validates configuration from environment variables.
func FromEnv() (*Config, error) {
	v := viper.New()

	for _, key := range []string{
		EnvClusterName, EnvClusterRegion,
		EnvServiceNamespace, EnvServiceName, EnvServicePort,
		EnvRequestTimeout, EnvRequestMethod, EnvRequestPath,
		EnvHeadersSecret,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	setDefaults(v)

	cfg := &Config{
		ClusterName:      v.GetString(EnvClusterName),
		ClusterRegion:    v.GetString(EnvClusterRegion),
		ServiceNamespace: v.GetString(EnvServiceNamespace),
		ServiceName:      v.GetString(EnvServiceName),
		ServicePort:      v.GetInt(EnvServicePort),
		RequestTimeout:   time.Duration(v.GetInt(EnvRequestTimeout)) * time.Second,
		RequestMethod:    v.GetString(EnvRequestMethod),
		RequestPath:      v.GetString(EnvRequestPath),
		HeadersSecret:    v.GetString(EnvHeadersSecret),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(EnvClusterRegion, DefaultRegion)
	v.SetDefault(EnvServicePort, DefaultServicePort)
	v.SetDefault(EnvRequestTimeout, DefaultRequestTimeoutSeconds)
	v.SetDefault(EnvRequestMethod, DefaultRequestMethod)
	v.SetDefault(EnvRequestPath, DefaultRequestPath)
}

// manifest is the YAML schema for FromFile. Timeouts are plain seconds, the
// same unit the environment variables use.
type manifest struct {
	ClusterName           string `yaml:"cluster_name"`
	ClusterRegion         string `yaml:"cluster_region"`
	ServiceNamespace      string `yaml:"service_namespace"`
	ServiceName           string `yaml:"service_name"`
	ServicePort           int    `yaml:"service_port"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	RequestMethod         string `yaml:"request_method"`
	RequestPath           string `yaml:"request_path"`
	HeadersSecret         string `yaml:"headers_secret"`
}

// FromFile loads and validates configuration from a YAML manifest, used by
// the CLI where no Lambda environment exists. Missing fields take the same
// defaults as the environment.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	cfg := &Config{
		ClusterName:      m.ClusterName,
		ClusterRegion:    m.ClusterRegion,
		ServiceNamespace: m.ServiceNamespace,
		ServiceName:      m.ServiceName,
		ServicePort:      m.ServicePort,
		RequestTimeout:   time.Duration(m.RequestTimeoutSeconds) * time.Second,
		RequestMethod:    m.RequestMethod,
		RequestPath:      m.RequestPath,
		HeadersSecret:    m.HeadersSecret,
	}

	if cfg.ClusterRegion == "" {
		cfg.ClusterRegion = DefaultRegion
	}
	if cfg.ServicePort == 0 {
		cfg.ServicePort = DefaultServicePort
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeoutSeconds * time.Second
	}
	if cfg.RequestMethod == "" {
		cfg.RequestMethod = DefaultRequestMethod
	}
	if cfg.RequestPath == "" {
		cfg.RequestPath = DefaultRequestPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges. It runs at startup so a broken
// deployment fails before any AWS call is made.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, EnvClusterName)
	}
	if c.ClusterRegion == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, EnvClusterRegion)
	}
	if c.ServiceNamespace == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, EnvServiceNamespace)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, EnvServiceName)
	}
	if c.ServicePort < 1 || c.ServicePort > 65535 {
		return fmt.Errorf("%w: %s must be a port number, got %d", ErrInvalid, EnvServicePort, c.ServicePort)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: %s must be a positive number of seconds", ErrInvalid, EnvRequestTimeout)
	}
	if err := c.Target().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Cluster returns the cluster identity the configuration points at.
func (c *Config) Cluster() cluster.Identity {
	return cluster.Identity{Name: c.ClusterName, Region: c.ClusterRegion}
}

// Target returns the service target the configuration points at.
func (c *Config) Target() proxy.ServiceTarget {
	return proxy.ServiceTarget{
		Namespace: c.ServiceNamespace,
		Service:   c.ServiceName,
		Port:      c.ServicePort,
		Method:    c.RequestMethod,
		Path:      c.RequestPath,
		Timeout:   c.RequestTimeout,
	}
}
