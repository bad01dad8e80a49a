package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/leadrelay/internal/cli/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate [endpoint]",
	Short: "Dry-run an intake endpoint",
	Long:  "Ask the relay whether an endpoint would accept a well-formed probe, without dispatching anything",
	Example: `  leadctl validate web-form
  leadctl validate unified --relay-url http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	relay, err := relayClient(cmd)
	if err != nil {
		return err
	}

	result, err := relay.Validate(args[0])
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}

	if jsonOutput(cmd) {
		return output.JSON(result)
	}

	if result.Validation.IsValid {
		output.Success("endpoint %s accepts the probe (shape: %s)", result.Endpoint, result.Validation.Shape)
	} else {
		output.Error("endpoint %s rejected the probe (shape: %s)", result.Endpoint, result.Validation.Shape)
	}
	if len(result.Validation.AppliedFallbacks) > 0 {
		output.Info("fallbacks applied: %s", strings.Join(result.Validation.AppliedFallbacks, ", "))
	}
	return nil
}
