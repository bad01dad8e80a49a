package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/internal/bulksync"
	"github.com/caseflow-systems/leadrelay/internal/cli/output"
	"github.com/caseflow-systems/leadrelay/internal/dispatch"
)

var syncCmd = &cobra.Command{
	Use:   "sync [resource]",
	Short: "Pull a full resource listing from the downstream API",
	Long: `Retrieve every page of a downstream resource listing, following the
API's pagination headers. Partial results are kept when a run ends on a
failure, so an interrupted pull still shows what was fetched.`,
	Example: `  leadctl sync inbox_leads --token $GROW_TOKEN
  leadctl sync contacts --page-size 100 --out contacts.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("base-url", "", "downstream API base URL")
	syncCmd.Flags().StringP("token", "t", "", "downstream API token")
	syncCmd.Flags().Int("page-size", 50, "records per page")
	syncCmd.Flags().Duration("timeout", 5*time.Minute, "overall run timeout")
	syncCmd.Flags().StringP("out", "o", "", "write records to a JSON file instead of a table")
}

func runSync(cmd *cobra.Command, args []string) error {
	resource := "inbox_leads"
	if len(args) > 0 {
		resource = args[0]
	}

	profile := activeProfile(cmd)

	engineCfg := bulksync.DefaultConfig()
	if profile.SyncBaseURL != "" {
		engineCfg.BaseURL = profile.SyncBaseURL
	}
	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		engineCfg.BaseURL = baseURL
	}
	engineCfg.PageSize, _ = cmd.Flags().GetInt("page-size")

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = profile.SyncToken
	}

	dispatchCfg := dispatch.DefaultConfig()
	dispatchCfg.Token = token

	logger := logging.Default()
	engine := bulksync.NewEngine(engineCfg, dispatch.NewClient(dispatchCfg, logger), logger)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	output.Info("Syncing %s from %s (%d per page)", resource, engineCfg.BaseURL, engineCfg.PageSize)
	result := engine.SyncAll(ctx, resource)

	if !result.Complete() {
		output.Warn("run ended early: %s (%s)", result.Terminal.Tag, result.Terminal.Cause)
	}

	if outFile, _ := cmd.Flags().GetString("out"); outFile != "" {
		data, err := json.MarshalIndent(result.Records, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		output.Success("%d records (%d pages) written to %s", len(result.Records), result.Pages, outFile)
		return nil
	}

	if jsonOutput(cmd) {
		return output.JSON(result.Records)
	}

	printSyncTable(result.Records)
	output.Success("%d records across %d pages", len(result.Records), result.Pages)
	return nil
}

// printSyncTable renders records on their common scalar columns. Record
// schemas vary per resource, so columns come from the first record.
func printSyncTable(records []bulksync.Record) {
	if len(records) == 0 {
		output.Info("no records")
		return
	}

	var columns []string
	for key, value := range records[0] {
		switch value.(type) {
		case string, float64, bool, nil:
			columns = append(columns, key)
		}
		if len(columns) == 6 {
			break
		}
	}

	table := output.NewTable(columns)
	for _, record := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = fmt.Sprintf("%v", record[col])
		}
		table.AddRow(row)
	}
	table.Render()
}
