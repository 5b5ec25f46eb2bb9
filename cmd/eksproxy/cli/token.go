package cli

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/liavyona/lambda-eks-integration/internal/cluster"
	"github.com/liavyona/lambda-eks-integration/internal/config"
	"github.com/liavyona/lambda-eks-integration/internal/credential"
	"github.com/liavyona/lambda-eks-integration/internal/token"
)

var (
	tokenCluster string
	tokenRegion  string
	tokenDecode  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a cluster",
	Long: `Mint a token the cluster API server accepts as bearer authentication.
The token is a presigned STS GetCallerIdentity URL bound to the cluster name,
valid for about a minute. Minting is local; no AWS call is made.

Examples:
  eksproxy token --cluster demo
  eksproxy token --cluster demo --region us-west-2
  eksproxy token --decode k8s-aws-v1.aHR0cHM6...`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenCluster, "cluster", "", "cluster name")
	tokenCmd.Flags().StringVar(&tokenRegion, "region", config.DefaultRegion, "cluster region")
	tokenCmd.Flags().StringVar(&tokenDecode, "decode", "", "decode a token to its presigned URL instead of minting")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenDecode != "" {
		signedURL, err := token.Decode(tokenDecode)
		if err != nil {
			return err
		}
		fmt.Println(signedURL)
		return nil
	}

	if tokenCluster == "" {
		return fmt.Errorf("--cluster is required")
	}

	ctx := cmd.Context()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(tokenRegion))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	creds, err := credential.NewSource(awsCfg.Credentials).Retrieve(ctx)
	if err != nil {
		return err
	}

	tok, err := token.NewMinter().Mint(ctx, creds, cluster.Identity{
		Name:   tokenCluster,
		Region: tokenRegion,
	})
	if err != nil {
		return err
	}

	fmt.Println(tok.Value)
	return nil
}
