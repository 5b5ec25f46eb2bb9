package main

import (
	"os"

	"github.com/liavyona/lambda-eks-integration/cmd/eksproxy/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
