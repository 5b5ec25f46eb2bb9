package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liavyona/lambda-eks-integration/internal/config"
	"github.com/liavyona/lambda-eks-integration/internal/handler"
)

var (
	invokeEvent     string
	invokeEventFile string
	invokeManifest  string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Run the full mint-and-dispatch flow from this machine",
	Long: `Run one invocation exactly as the Lambda would: resolve the cluster, mint
a token, relay the event through the API server and print the envelope.

Configuration comes from the same environment variables the Lambda uses, or
from a YAML manifest via --config.

Examples:
  eksproxy invoke --event '{"name":"John","age":32}'
  eksproxy invoke --event-file event.json --config invoke.yaml`,
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)
	invokeCmd.Flags().StringVar(&invokeEvent, "event", "", "JSON event to forward")
	invokeCmd.Flags().StringVar(&invokeEventFile, "event-file", "", "file holding the JSON event to forward")
	invokeCmd.Flags().StringVar(&invokeManifest, "config", "", "YAML manifest instead of environment variables")
}

// loadEvent resolves the forwarded event from the flags. With neither flag
// set an empty JSON object is forwarded, mirroring a test invocation from the
// Lambda console.
func loadEvent(event, eventFile string) (json.RawMessage, error) {
	raw := json.RawMessage(`{}`)
	switch {
	case event != "" && eventFile != "":
		return nil, fmt.Errorf("--event and --event-file are mutually exclusive")
	case event != "":
		raw = json.RawMessage(event)
	case eventFile != "":
		data, err := os.ReadFile(eventFile)
		if err != nil {
			return nil, fmt.Errorf("reading event file: %w", err)
		}
		raw = json.RawMessage(data)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("event is not valid JSON")
	}
	return raw, nil
}

func runInvoke(cmd *cobra.Command, args []string) error {
	event, err := loadEvent(invokeEvent, invokeEventFile)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if invokeManifest != "" {
		cfg, err = config.FromFile(invokeManifest)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	h, err := handler.New(ctx, cfg)
	if err != nil {
		return err
	}

	envelope, err := h.Handle(ctx, event)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
