// Command eks-lambda is the Lambda entrypoint: it turns an inbound event
// into an authenticated HTTP call to a ClusterIP service in a private EKS
// cluster, relayed through the cluster API server's service proxy.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/liavyona/lambda-eks-integration/internal/config"
	"github.com/liavyona/lambda-eks-integration/internal/handler"
	"github.com/liavyona/lambda-eks-integration/internal/log"
)

func main() {
	log.Init(log.Options{JSONFormat: true})

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	h, err := handler.New(context.Background(), cfg)
	if err != nil {
		log.Error("initializing handler", "error", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
