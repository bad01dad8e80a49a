package cli

import (
	"github.com/spf13/cobra"

	"github.com/caseflow-systems/leadrelay/internal/cli/config"
	"github.com/caseflow-systems/leadrelay/internal/cli/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage relay profiles",
	Long:  "Store connection settings for relay deployments so commands do not need flags every time",
}

var profileSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or update a profile and make it current",
	Example: `  leadctl profile set staging --relay-url https://staging-leads.example.com --api-key KEY
  leadctl profile set prod --relay-url https://leads.example.com --sync-token $GROW_TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		profile := &config.Profile{}
		if existing, err := cfg.GetProfile(name); err == nil {
			*profile = *existing
		}

		if v, _ := cmd.Flags().GetString("relay-url"); v != "" {
			profile.RelayURL = v
		}
		if v, _ := cmd.Flags().GetString("api-key"); v != "" {
			profile.APIKey = v
		}
		if v, _ := cmd.Flags().GetString("bearer-token"); v != "" {
			profile.BearerToken = v
		}
		if v, _ := cmd.Flags().GetString("sync-base-url"); v != "" {
			profile.SyncBaseURL = v
		}
		if v, _ := cmd.Flags().GetString("sync-token"); v != "" {
			profile.SyncToken = v
		}

		if err := cfg.SaveProfile(name, profile); err != nil {
			return err
		}
		output.Success("profile %s saved and selected", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput(cmd) {
			return output.JSON(cfg.Profiles)
		}

		table := output.NewTable([]string{"NAME", "RELAY URL", "SYNC BASE URL", "CURRENT"})
		for name, profile := range cfg.Profiles {
			current := ""
			if name == cfg.CurrentProfile {
				current = "*"
			}
			table.AddRow([]string{name, profile.RelayURL, profile.SyncBaseURL, current})
		}
		table.Render()
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("profile %s removed", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRemoveCmd)

	profileSetCmd.Flags().String("relay-url", "", "relay base URL")
	profileSetCmd.Flags().String("api-key", "", "relay API key")
	profileSetCmd.Flags().String("bearer-token", "", "relay JWT bearer token")
	profileSetCmd.Flags().String("sync-base-url", "", "downstream API base URL for bulk sync")
	profileSetCmd.Flags().String("sync-token", "", "downstream API token for bulk sync")
}
