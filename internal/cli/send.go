package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/leadrelay/internal/cli/client"
	"github.com/caseflow-systems/leadrelay/internal/cli/output"
	"github.com/caseflow-systems/leadrelay/internal/models"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Submit a lead to the relay",
	Long:  "Submit a lead payload to one of the relay's intake endpoints",
	Example: `  leadctl send --first Jane --last Doe --email jane@example.com --message "Need a consult"
  leadctl send --file lead.json --endpoint unified
  leadctl send --file batch.json --endpoint capture-now`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("file", "f", "", "JSON payload file (sent as-is)")
	sendCmd.Flags().StringP("endpoint", "e", "unified", "intake endpoint: web-form, capture-now, unified, legacy")
	sendCmd.Flags().String("first", "", "first name")
	sendCmd.Flags().String("last", "", "last name")
	sendCmd.Flags().StringP("message", "m", "", "lead message")
	sendCmd.Flags().String("email", "", "email address")
	sendCmd.Flags().String("phone", "", "phone number")
	sendCmd.Flags().String("url", "", "referring URL")
	sendCmd.Flags().String("source", "", "lead source")
}

func runSend(cmd *cobra.Command, args []string) error {
	endpoint, _ := cmd.Flags().GetString("endpoint")

	payload, err := sendPayload(cmd)
	if err != nil {
		return err
	}

	relay, err := relayClient(cmd)
	if err != nil {
		return err
	}

	result, err := relay.Submit(endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to submit lead: %w", err)
	}

	if jsonOutput(cmd) {
		return output.JSON(result)
	}
	printSubmitResult(result)
	return nil
}

// sendPayload builds the request body: a file verbatim, or a flat lead
// assembled from the field flags.
func sendPayload(cmd *cobra.Command) ([]byte, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		return data, nil
	}

	fields := models.RawPayload{}
	flagFor := map[string]string{
		models.FieldFirstName:    "first",
		models.FieldLastName:     "last",
		models.FieldMessage:      "message",
		models.FieldEmail:        "email",
		models.FieldPhoneNumber:  "phone",
		models.FieldReferringURL: "url",
		models.FieldSource:       "source",
	}
	for field, flag := range flagFor {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			fields[field] = v
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("either --file or at least one lead field flag is required")
	}
	return json.Marshal(fields)
}

func printSubmitResult(result *client.SubmitResult) {
	switch result.Status {
	case "success":
		output.Success("%d/%d leads delivered", result.Successful, result.TotalLeads)
	case "partial":
		output.Warn("%d/%d leads delivered, %d failed", result.Successful, result.TotalLeads, result.Failed)
	default:
		output.Error("all %d leads failed", result.TotalLeads)
	}

	table := output.NewTable([]string{"#", "OUTCOME", "SHAPE", "REMOTE ID", "FALLBACKS", "DETAIL"})
	for i, r := range result.Results {
		detail := r.Cause
		if detail == "" && len(r.FieldErrors) > 0 {
			for field, msgs := range r.FieldErrors {
				if len(msgs) > 0 {
					detail = field + ": " + msgs[0]
					break
				}
			}
		}
		table.AddRow([]string{
			fmt.Sprintf("%d", i+1),
			r.Tag,
			r.Shape,
			r.RemoteID,
			fmt.Sprintf("%d", len(r.Fallbacks)),
			detail,
		})
	}
	table.Render()
}
