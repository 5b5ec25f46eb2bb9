package cli

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/spf13/cobra"

	"github.com/liavyona/lambda-eks-integration/internal/cluster"
	"github.com/liavyona/lambda-eks-integration/internal/config"
)

var (
	resolveCluster string
	resolveRegion  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Look up a cluster's API server endpoint and CA",
	Long: `Look up the API server endpoint and certificate authority of a cluster
via EKS DescribeCluster, the same call the Lambda makes on cold start.

Examples:
  eksproxy resolve --cluster demo
  eksproxy resolve --cluster demo --region us-west-2`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveCluster, "cluster", "", "cluster name")
	resolveCmd.Flags().StringVar(&resolveRegion, "region", config.DefaultRegion, "cluster region")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveCluster == "" {
		return fmt.Errorf("--cluster is required")
	}

	ctx := cmd.Context()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(resolveRegion))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	details, err := cluster.NewResolver(eks.NewFromConfig(awsCfg)).Resolve(ctx, cluster.Identity{
		Name:   resolveCluster,
		Region: resolveRegion,
	})
	if err != nil {
		return err
	}

	fmt.Printf("endpoint: %s\n", details.Endpoint)

	block, _ := pem.Decode(details.CertificateAuthority)
	if block == nil {
		return fmt.Errorf("certificate authority is not PEM encoded")
	}
	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("parsing certificate authority: %w", err)
	}
	fmt.Printf("certificate authority: %s (expires %s)\n", ca.Subject, ca.NotAfter.Format("2006-01-02"))
	return nil
}
