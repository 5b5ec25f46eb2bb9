// Package cli implements the eksproxy command-line interface using Cobra.
// It exposes the same building blocks the Lambda uses, so tokens, cluster
// lookups and full invocations can be exercised from a developer machine.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/liavyona/lambda-eks-integration/internal/log"
)

var (
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "eksproxy",
	Short: "Call services inside a private EKS cluster through the API server",
	Long: `eksproxy reaches ClusterIP services in a private EKS cluster without any
network path into the pod network. It authenticates with a short-lived
STS-presigned bearer token and relays the request through the cluster API
server's service proxy, exactly as the eks-lambda function does.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Options{
			Verbose:    verbose,
			JSONFormat: jsonOut,
		})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "log in JSON format")
}
