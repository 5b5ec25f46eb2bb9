// Package handler wires configuration, credentials, token minting and proxy
// dispatch into the Lambda invocation flow.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/lambdacontext"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/liavyona/lambda-eks-integration/internal/cluster"
	"github.com/liavyona/lambda-eks-integration/internal/config"
	"github.com/liavyona/lambda-eks-integration/internal/credential"
	"github.com/liavyona/lambda-eks-integration/internal/log"
	"github.com/liavyona/lambda-eks-integration/internal/proxy"
	"github.com/liavyona/lambda-eks-integration/internal/secrets"
	"github.com/liavyona/lambda-eks-integration/internal/token"
)

// Handler executes invocations against one configured cluster and service.
// Credentials, cluster details and forwarded headers are cached by their
// owning packages across warm invocations; the token and the request are
// built fresh every time.
type Handler struct {
	cfg      *config.Config
	source   *credential.Source
	resolver *cluster.Resolver
	minter   *token.Minter
	headers  *secrets.HeaderSource
}

// New builds a Handler from validated configuration: loads the default AWS
// configuration for the cluster region and prepares the cached sources.
func New(ctx context.Context, cfg *config.Config) (*Handler, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.ClusterRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	// Resolve who we are once at startup so a broken execution role shows up
	// in the logs before the first event arrives.
	if arn, err := credential.CallerIdentity(ctx, sts.NewFromConfig(awsCfg)); err != nil {
		log.Warn("could not resolve caller identity", "error", err)
	} else {
		log.Info("resolved caller identity", "arn", arn)
	}

	var headers *secrets.HeaderSource
	if cfg.HeadersSecret != "" {
		headers = secrets.NewHeaderSource(secretsmanager.NewFromConfig(awsCfg), cfg.HeadersSecret)
	}

	return &Handler{
		cfg:      cfg,
		source:   credential.NewSource(awsCfg.Credentials),
		resolver: cluster.NewResolver(eks.NewFromConfig(awsCfg)),
		minter:   token.NewMinter(),
		headers:  headers,
	}, nil
}

// Handle is the Lambda entrypoint: event in, envelope out. Errors before the
// dispatch (credentials, cluster lookup, signing, request building) fail the
// invocation; once the request is on the wire every outcome, including
// transport failures, comes back inside the envelope.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (Envelope, error) {
	meta := invocationMeta(ctx)
	log.Info("handling invocation",
		"request_id", meta.RequestID,
		"cluster", h.cfg.ClusterName,
		"target", h.cfg.Target().String())

	creds, err := h.source.Retrieve(ctx)
	if err != nil {
		return Envelope{}, err
	}

	details, err := h.resolver.Resolve(ctx, h.cfg.Cluster())
	if err != nil {
		return Envelope{}, err
	}

	tok, err := h.minter.Mint(ctx, creds, h.cfg.Cluster())
	if err != nil {
		return Envelope{}, err
	}

	extra, err := h.headers.Headers(ctx)
	if err != nil {
		return Envelope{}, err
	}

	req, err := proxy.BuildRequest(h.cfg.Target(), event, extra)
	if err != nil {
		return Envelope{}, err
	}

	dispatcher, err := proxy.NewDispatcher(details, tok, h.cfg.RequestTimeout)
	if err != nil {
		return Envelope{}, err
	}

	result := dispatcher.Dispatch(ctx, req)
	if result.Err != nil {
		log.Warn("dispatch failed", "request_id", meta.RequestID, "error", result.Err)
	} else {
		log.Info("dispatch completed", "request_id", meta.RequestID, "status", result.StatusCode)
	}

	return NewEnvelope(meta, event, result), nil
}

// invocationMeta reads the request id and function ARN from the Lambda
// context, with local stand-ins for runs outside the Lambda runtime.
func invocationMeta(ctx context.Context) InvocationMeta {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return InvocationMeta{
			RequestID:   lc.AwsRequestID,
			FunctionARN: lc.InvokedFunctionArn,
		}
	}
	return InvocationMeta{
		RequestID:   "local-" + uuid.New().String(),
		FunctionARN: "local",
	}
}
