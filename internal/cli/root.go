// Package cli implements the leadctl command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/leadrelay/internal/cli/client"
	"github.com/caseflow-systems/leadrelay/internal/cli/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "Lead relay CLI",
	Long: `leadctl is the command-line interface for the lead relay.

Submit leads in any producer format, seed a relay with fake traffic,
pull full resource listings from the downstream API, and verify intake
endpoints from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.leadctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use")
	rootCmd.PersistentFlags().String("relay-url", "", "relay base URL (overrides profile)")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// activeProfile resolves the profile named by --profile, falling back to
// the config's current profile, then to an empty profile so flag-only
// invocations still work.
func activeProfile(cmd *cobra.Command) *config.Profile {
	name, _ := cmd.Flags().GetString("profile")
	profile, err := cfg.GetProfile(name)
	if err != nil {
		return &config.Profile{}
	}
	return profile
}

// relayClient builds the relay client from the active profile plus any
// flag overrides.
func relayClient(cmd *cobra.Command) (*client.RelayClient, error) {
	profile := activeProfile(cmd)

	relayURL, _ := cmd.Flags().GetString("relay-url")
	if relayURL == "" {
		relayURL = profile.RelayURL
	}
	if relayURL == "" {
		return nil, fmt.Errorf("no relay URL configured (use --relay-url or 'leadctl profile set')")
	}

	c := client.NewRelayClient(relayURL)
	if profile.APIKey != "" {
		c = c.WithAPIKey(profile.APIKey)
	}
	if profile.BearerToken != "" {
		c = c.WithBearerToken(profile.BearerToken)
	}
	return c, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}
