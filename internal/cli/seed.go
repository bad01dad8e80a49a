package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/leadrelay/internal/cli/output"
	"github.com/caseflow-systems/leadrelay/internal/cli/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a relay with generated leads",
	Long: `Generate fake leads in every producer format and submit them to a
running relay. Useful for exercising classification, fallback
substitution, and batch handling against a real deployment.`,
	Example: `  leadctl seed --count 500
  leadctl seed --count 100 --shape batch,transport --gap-rate 0.4`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntP("count", "c", 100, "number of leads to generate")
	seedCmd.Flags().IntP("batch-size", "b", 5, "leads per batch envelope")
	seedCmd.Flags().String("shape", "", "comma-separated shapes: direct, batch, flat, transport (default: all)")
	seedCmd.Flags().Float64("gap-rate", 0.2, "probability of omitting each field, forcing relay fallbacks")
}

func runSeed(cmd *cobra.Command, args []string) error {
	profile := activeProfile(cmd)

	seedCfg := seeder.DefaultConfig()
	seedCfg.Count, _ = cmd.Flags().GetInt("count")
	seedCfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	seedCfg.GapRate, _ = cmd.Flags().GetFloat64("gap-rate")
	seedCfg.APIKey = profile.APIKey

	if relayURL, _ := cmd.Flags().GetString("relay-url"); relayURL != "" {
		seedCfg.RelayURL = relayURL
	} else if profile.RelayURL != "" {
		seedCfg.RelayURL = profile.RelayURL
	}

	if shapes, _ := cmd.Flags().GetString("shape"); shapes != "" {
		seedCfg.Shapes = nil
		for _, shape := range strings.Split(shapes, ",") {
			shape = strings.TrimSpace(shape)
			if !validShape(shape) {
				return fmt.Errorf("unknown shape %q (valid: %s)", shape, strings.Join(seeder.AllShapes, ", "))
			}
			seedCfg.Shapes = append(seedCfg.Shapes, shape)
		}
	}

	output.Info("Seeding %s with %d leads (shapes: %s, gap rate: %.0f%%)",
		seedCfg.RelayURL, seedCfg.Count, strings.Join(seedCfg.Shapes, ", "), seedCfg.GapRate*100)

	stats, err := seeder.NewRunner(seedCfg, output.Info).Run()
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if jsonOutput(cmd) {
		return output.JSON(stats)
	}

	output.Info("Submissions: %d", stats.Submissions)
	output.Info("Leads:       %d", stats.Leads)
	if stats.Failed > 0 || stats.Errors > 0 {
		output.Warn("Delivered:   %d (failed: %d, submit errors: %d)", stats.Delivered, stats.Failed, stats.Errors)
	} else {
		output.Success("Delivered:   %d", stats.Delivered)
	}
	return nil
}

func validShape(shape string) bool {
	for _, s := range seeder.AllShapes {
		if s == shape {
			return true
		}
	}
	return false
}
